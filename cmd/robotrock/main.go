package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"robotrock.json" description:"Configuration file (.json, .yaml or .yml)"`
	Verbose bool   `short:"v" long:"verbose" description:"Log debug messages"`

	Run   RunCommand   `command:"run" description:"Drive the robot from a websocket controller"`
	Setup SetupCommand `command:"setup" description:"Find the servo bus and calibrate the legs"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "robotrock - joystick control for a multi-legged walking robot"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
