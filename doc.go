// Package robotrock drives a multi-legged walking robot from a joystick.
//
// A controller (phone or gamepad page) streams stick and button samples over a
// websocket. Each sample is turned into servo goals by the gait gestures: lean
// with the right stick while the lean button is held, swing the shoulders with
// the left stick, raise and lower the body with the up and down buttons. A fixed
// rate loop moves every servo towards its goal through a PID controller. At
// startup the servos are let in one at a time so they do not brown out the supply.
//
// # Installation
//
//	go install github.com/ThoseGrapefruits/robot-rock/cmd/robotrock@latest
//
// # Usage
//
// First, run setup to find the servo bus and calibrate the legs:
//
//	robotrock setup
//
// Then start the robot and connect a controller to ws://host:8080/control:
//
//	robotrock run
//
// Without hardware, --dry-run logs the servo writes instead.
//
// # Packages
//
//   - cmd/robotrock: CLI with setup and run commands
//   - pkg/robot: servo model, calibration, PID, hardware drivers and configuration
//   - pkg/input: controller samples and the websocket input server
//   - pkg/gait: gestures, settling and the startup ramp
//   - pkg/teleop: control loop tying input, ticks and the ramp together
package robotrock
