package common

import (
	"errors"

	"github.com/lib/pq"
)

// IsUniqueViolation проверяет, что ошибка вызвана нарушением уникального индекса.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsCheckViolation проверяет нарушение CHECK ограничения.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23514"
}
