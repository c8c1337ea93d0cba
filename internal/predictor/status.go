package predictor

import "fmt"

// Status is one of the nutritional-status classes the model distinguishes.
// The order matches the output units of the network.
type Status int

const (
	Normal Status = iota
	Stunted
	SeverelyStunted
	Tall
)

// NumClasses is the width the output layer must have.
const NumClasses = 4

var statusLabels = [NumClasses]string{
	Normal:          "Normal",
	Stunted:         "Stunted",
	SeverelyStunted: "Severely Stunted",
	Tall:            "Tinggi",
}

func (s Status) String() string {
	if s < Normal || s > Tall {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusLabels[s]
}

// Labels returns the class labels in output order.
func Labels() []string {
	return append([]string(nil), statusLabels[:]...)
}
