package mapping

// FormatAddress renders a reverse-geocoded placemark for the address label:
// "street, number", else "street", else "".
func FormatAddress(p Placemark) string {
	switch {
	case p.Street != "" && p.Number != "":
		return p.Street + ", " + p.Number
	case p.Street != "":
		return p.Street
	default:
		return ""
	}
}
