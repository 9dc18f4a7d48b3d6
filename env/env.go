package env

import "flag"

type Args struct {
	Test      *bool
	Provision *bool
	Verbose   *bool
	Speedon   *bool
	Diron     *bool
	Rainon    *bool
}

// ParseArgs registers and parses the command line flags.
func ParseArgs() Args {
	a := Args{
		Test:      flag.Bool("test", false, "test mode, does not send telemetry"),
		Provision: flag.Bool("provision", false, "open the provisioning window at boot"),
		Verbose:   flag.Bool("verbose", false, "debug logging"),
		Speedon:   flag.Bool("speed", false, "log every wind speed sample"),
		Diron:     flag.Bool("dir", false, "log every wind direction sample"),
		Rainon:    flag.Bool("rain", false, "log rain totals on every sample"),
	}
	flag.Parse()
	return a
}

var Disabled = false

// NoArgs has every flag off. Used by tests.
func NoArgs() Args {
	return Args{
		Test:      &Disabled,
		Provision: &Disabled,
		Verbose:   &Disabled,
		Speedon:   &Disabled,
		Diron:     &Disabled,
		Rainon:    &Disabled,
	}
}
