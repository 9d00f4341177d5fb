// Package intent classifies a single user utterance into one of a closed set
// of conversational intents.
package intent

// Intent is the closed-set purpose of an utterance.
type Intent string

const (
	Greetings         Intent = "GREETINGS"
	Goodbye           Intent = "GOODBYE"
	Help              Intent = "HELP"
	Negate            Intent = "NEGATE"
	Confirm           Intent = "CONFIRM"
	AskForMedName     Intent = "ASK_FOR_MED_NAME"
	MedicineNameOnly  Intent = "MEDICINE_NAME_ONLY"
	MedicineInfo      Intent = "MEDICINE_INFO"
	CheckAvailability Intent = "CHECK_AVAILABILITY"
	Unknown           Intent = "UNKNOWN"
)

var all = []Intent{
	Greetings,
	Goodbye,
	Help,
	Negate,
	Confirm,
	AskForMedName,
	MedicineNameOnly,
	MedicineInfo,
	CheckAvailability,
	Unknown,
}

// All lists every intent in declaration order.
func All() []Intent {
	return append([]Intent(nil), all...)
}

// Valid reports whether i belongs to the closed set.
func (i Intent) Valid() bool {
	for _, v := range all {
		if v == i {
			return true
		}
	}
	return false
}

func (i Intent) String() string { return string(i) }
