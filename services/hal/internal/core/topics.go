package core

import "sensorcode-go/bus"

// T builds a topic from tokens, so HAL and device code reads like any other
// bus call site.
func T(tokens ...bus.Token) bus.Topic { return bus.T(tokens...) }

func topicConfigHAL() bus.Topic { return T("config", "hal") }

// ctrlWildcard catches every capability control verb:
// hal/cap/+/+/+/control/+
func ctrlWildcard() bus.Topic { return T("hal", "cap", "+", "+", "+", "control", "+") }

// Capability topics hang off hal/cap/<domain>/<kind>/<name>.

func (a CapAddr) topic() bus.Topic { return T("hal", "cap", a.Domain, string(a.Kind), a.Name) }

func (a CapAddr) infoTopic() bus.Topic   { return a.topic().Append("info") }
func (a CapAddr) statusTopic() bus.Topic { return a.topic().Append("status") }
func (a CapAddr) valueTopic() bus.Topic  { return a.topic().Append("value") }

// eventTopic is .../event, or .../event/<tag> when the tag is set.
func (a CapAddr) eventTopic(tag string) bus.Topic {
	t := a.topic().Append("event")
	if tag == "" {
		return t
	}
	return t.Append(tag)
}

func (a CapAddr) ctrlTopic(verb string) bus.Topic { return a.topic().Append("control", verb) }
