package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinJobTitleLength       = 5
	MaxJobTitleLength       = 200
	MinJobDescriptionLength = 10
	MaxJobDescriptionLength = 5000
	MaxCoverLetterLength    = 1000
	MaxCategoryLength       = 100
	MaxLocationLength       = 200
	MaxSkillLength          = 50
	MaxSkillsCount          = 30
	MaxBudget               = 100000000.0 // 100 миллионов
	MinMessageLength        = 1
	MaxMessageLength        = 5000
	MaxReasonLength         = 2000
)

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

// ValidateJobTitle проверяет заголовок заказа.
func ValidateJobTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок заказа обязателен")
	}
	return ValidateLength("заголовок заказа", title, MinJobTitleLength, MaxJobTitleLength)
}

// ValidateJobDescription проверяет описание заказа.
func ValidateJobDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("описание заказа обязательно")
	}
	return ValidateLength("описание заказа", description, MinJobDescriptionLength, MaxJobDescriptionLength)
}

// ValidateCoverLetter проверяет необязательное сопроводительное письмо к ставке.
func ValidateCoverLetter(coverLetter *string) error {
	if coverLetter == nil {
		return nil
	}
	return ValidateLength("сопроводительное письмо", strings.TrimSpace(*coverLetter), 0, MaxCoverLetterLength)
}

// ValidateBudget проверяет диапазон оценки стоимости. Нулевой максимум означает "без оценки".
func ValidateBudget(priceMin, priceMax float64) error {
	if priceMin < 0 || priceMax < 0 {
		return fmt.Errorf("бюджет не может быть отрицательным")
	}
	if priceMin > MaxBudget || priceMax > MaxBudget {
		return fmt.Errorf("бюджет не может превышать %.0f", MaxBudget)
	}
	if priceMax > 0 && priceMin > priceMax {
		return fmt.Errorf("минимальный бюджет не может быть больше максимального")
	}
	return nil
}

// ValidateSkills проверяет массив навыков.
func ValidateSkills(skills []string) error {
	if len(skills) > MaxSkillsCount {
		return fmt.Errorf("количество навыков не может превышать %d", MaxSkillsCount)
	}

	seen := make(map[string]bool)
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			return fmt.Errorf("навык не может быть пустым")
		}

		if utf8.RuneCountInString(skill) > MaxSkillLength {
			return fmt.Errorf("навык не может быть длиннее %d символов", MaxSkillLength)
		}

		// Проверка на дубликаты (без учета регистра)
		skillLower := strings.ToLower(skill)
		if seen[skillLower] {
			return fmt.Errorf("навык '%s' указан дважды", skill)
		}
		seen[skillLower] = true
	}

	return nil
}

// ValidateLocation проверяет адрес объекта.
func ValidateLocation(location string) error {
	return ValidateLength("местоположение", strings.TrimSpace(location), 0, MaxLocationLength)
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}
	return ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength)
}

// ValidateReason проверяет обязательную причину (спор, отмена, штраф).
func ValidateReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("причина обязательна")
	}
	return ValidateLength("причина", reason, 0, MaxReasonLength)
}
