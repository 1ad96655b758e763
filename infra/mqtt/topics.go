package mqtt

// Topic layout used by the Home Assistant vehicle bridge. Both topics are
// scoped by the vehicle identification number.

// StateTopic carries the battery level as plain integer text.
func StateTopic(vin string) string {
	return "homeassistant/sensor/" + vin + "/high_voltage_battery/state"
}

// CommandTopic receives the charge override payloads START and STOP.
func CommandTopic(vin string) string {
	return "homeassistant/sensor/" + vin + "/charge_override/command"
}
