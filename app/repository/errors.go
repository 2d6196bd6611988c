package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const mysqlDuplicateEntry = 1062

var (
	mysqlDuplicateKeyPattern  = regexp.MustCompile(`for key '(?:\w+\.)?(\w+)'`)
	sqliteUniqueColumnPattern = regexp.MustCompile(`UNIQUE constraint failed: \w+\.(\w+)`)
)

// Unique indexes and the user-facing field they protect.
var uniqueKeyFields = map[string]string{
	"uq_users_username":           "username",
	"uq_users_email":              "email",
	"uq_users_verification_token": "verification_token",
	"username":                    "username",
	"canonical_email":             "email",
	"email":                       "email",
	"verification_token":          "verification_token",
	"jti":                         "jti",
	"PRIMARY":                     "id",
}

// DuplicateKeyError reports which unique constraint rejected a write.
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// translateError turns driver-specific uniqueness violations into *DuplicateKeyError
// and returns every other error unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return &DuplicateKeyError{Field: fieldFromMatch(mysqlDuplicateKeyPattern, mysqlErr.Message), Err: err}
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed") {
			return &DuplicateKeyError{Field: fieldFromMatch(sqliteUniqueColumnPattern, sqliteErr.Error()), Err: err}
		}
		return err
	}

	// Drivers wrapped by other layers still carry the message.
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &DuplicateKeyError{Field: fieldFromMatch(sqliteUniqueColumnPattern, err.Error()), Err: err}
	}

	return err
}

func fieldFromMatch(pattern *regexp.Regexp, message string) string {
	match := pattern.FindStringSubmatch(message)
	if len(match) < 2 {
		return "unknown"
	}
	if field, ok := uniqueKeyFields[match[1]]; ok {
		return field
	}
	return match[1]
}
