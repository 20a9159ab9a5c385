package model

import "strconv"

// FormatAmount форматирует сумму с разделением разрядов пробелом: 15000 -> "15 000".
func FormatAmount(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	sign := ""
	if amount < 0 {
		sign, digits = "-", digits[1:]
	}

	if len(digits) <= 3 {
		return sign + digits
	}

	head := len(digits) % 3
	if head == 0 {
		head = 3
	}

	out := make([]byte, 0, len(digits)+len(digits)/3)
	out = append(out, digits[:head]...)
	for i := head; i < len(digits); i += 3 {
		out = append(out, ' ')
		out = append(out, digits[i:i+3]...)
	}

	return sign + string(out)
}

// MaskCardNumber скрывает середину номера карты: 8600123456789012 -> "8600 **** **** 9012".
func MaskCardNumber(card string) string {
	if len(card) < 8 {
		return card
	}
	return card[:4] + " **** **** " + card[len(card)-4:]
}
