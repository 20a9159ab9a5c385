// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// Допустимая длина номера карты.
const (
	MinCardLength = 16
	MaxCardLength = 19
)

// NormalizeCardNumber удаляет пробелы и дефисы из номера карты.
func NormalizeCardNumber(card string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, card)
}

// IsValidCardNumber проверяет, что номер карты после нормализации состоит из 16–19 цифр.
func IsValidCardNumber(card string) bool {
	number := NormalizeCardNumber(card)
	if len(number) < MinCardLength || len(number) > MaxCardLength {
		return false
	}

	for i := 0; i < len(number); i++ {
		if !unicode.IsDigit(rune(number[i])) {
			return false
		}
	}

	return true
}

// IsDigits сообщает, состоит ли непустая строка только из ASCII-цифр.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
