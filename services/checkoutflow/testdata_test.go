package checkoutflow

import (
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

func validApplication() checkoutapi.ApplicationFormData {
	return checkoutapi.ApplicationFormData{
		Email:       "asha@example.com",
		FirstName:   "Asha",
		LastName:    "Rao",
		Phone:       "+919800000000",
		Company:     "Acme Analytics",
		Designation: "CTO",
		Website:     "https://acme.example.com",
		Size:        "11-50",
		ServiceCode: "ARCH-REVIEW",
		ServiceName: "Architecture review",
		Amount:      5000000,
		Currency:    "INR",
	}
}

// controllerAt walks a controller with valid data up to the requested step.
func controllerAt(data checkoutapi.ApplicationFormData, step Step) *Controller {
	form := NewController(data)
	for form.Step() != step {
		_, err := form.NextStep()
		if err != nil {
			panic(err)
		}
	}
	return form
}
