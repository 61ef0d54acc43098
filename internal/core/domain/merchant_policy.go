package domain

import "strings"

// merchantPolicies lists the payment details each biller requires.
var merchantPolicies = map[string][]string{
	"rapido":  {"cardNumber"},
	"woyofal": {"meterNumber", "phoneNumber"},
	"airtime": {"phoneNumber", "operator"},
}

// RequiredMerchantDetails returns the detail fields a merchant code needs.
func RequiredMerchantDetails(merchantCode string) []string {
	return merchantPolicies[strings.ToLower(merchantCode)]
}

// MissingMerchantDetails returns required fields absent or blank in details.
func MissingMerchantDetails(merchantCode string, details map[string]string) []string {
	var missing []string
	for _, field := range RequiredMerchantDetails(merchantCode) {
		if strings.TrimSpace(details[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}
