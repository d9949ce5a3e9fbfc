package domain

// FormatDocument applies the CPF or CNPJ display mask to partial or complete
// input. Up to 11 digits are masked as a CPF (000.000.000-00); longer input is
// masked as a CNPJ (00.000.000/0000-00) and truncated at 14 digits, so feeding
// the output back in yields the same string.
func FormatDocument(value string) string {
	d := Digits(value)
	if len(d) > cnpjLength {
		d = d[:cnpjLength]
	}
	if len(d) <= cpfLength {
		return formatCPF(d)
	}
	return formatCNPJ(d)
}

func formatCPF(d string) string {
	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 6:
		return d[:3] + "." + d[3:]
	case len(d) <= 9:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	default:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	}
}

func formatCNPJ(d string) string {
	switch {
	case len(d) <= 12:
		return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:]
	default:
		return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
	}
}
