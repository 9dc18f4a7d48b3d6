package provision

import (
	"fmt"
	"io"

	logger "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// OpenSerial opens the wireless serial link, typically the RFCOMM device the
// Bluetooth stack binds for the advertised name.
func OpenSerial(port string, baud int, name string) (io.ReadWriteCloser, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open provisioning port %s: %w", port, err)
	}
	logger.Infof("Bluetooth device [%v] is ready to pair on [%v]", name, port)
	return p, nil
}
