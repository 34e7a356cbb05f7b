package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации.
const (
	MinUsernameLength            = 3
	MaxUsernameLength            = 30
	MinContractTitleLength       = 3
	MaxContractTitleLength       = 200
	MinContractDescriptionLength = 10
	MaxContractDescriptionLength = 5000
	MinMilestoneTitleLength      = 1
	MaxMilestoneTitleLength      = 200
	MaxMilestoneDescription      = 5000
	MinDisputeReasonLength       = 10
	MaxDisputeReasonLength       = 5000
	MaxAmount                    = 100000000.0 // 100 миллионов
)

// Допустимые коды валют контрактов.
var validCurrencies = map[string]struct{}{
	"USD":  {},
	"EUR":  {},
	"RUB":  {},
	"USDC": {},
	"DOT":  {},
}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	localRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !localRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	usernameRegex := regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	if unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateContractTitle проверяет заголовок контракта.
func ValidateContractTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("заголовок контракта обязателен")
	}
	return ValidateLength("заголовок контракта", strings.TrimSpace(title), MinContractTitleLength, MaxContractTitleLength)
}

// ValidateContractDescription проверяет описание контракта.
func ValidateContractDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("описание контракта обязательно")
	}
	return ValidateLength("описание контракта", strings.TrimSpace(description), MinContractDescriptionLength, MaxContractDescriptionLength)
}

// ValidateAmount проверяет, что сумма положительна и в разумных пределах.
func ValidateAmount(fieldName string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%s должна быть положительной", fieldName)
	}
	if amount > MaxAmount {
		return fmt.Errorf("%s превышает максимально допустимую", fieldName)
	}
	return nil
}

// ValidateCurrency проверяет код валюты.
func ValidateCurrency(currency string) error {
	if _, ok := validCurrencies[strings.ToUpper(currency)]; !ok {
		return fmt.Errorf("валюта %q не поддерживается", currency)
	}
	return nil
}
