package postgres

import (
	"encoding/hex"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"accountservice/internal/domain"
)

const accountColumns = `id, first_name, last_name, email, country, email_verified, status, roles, authorities, created_at, updated_at, last_active`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a           domain.Account
		idUUID      pgtype.UUID
		status      string
		roles       []string
		authorities []string
	)
	err := row.Scan(
		&idUUID,
		&a.FirstName,
		&a.LastName,
		&a.Email,
		&a.Country,
		&a.EmailVerified,
		&status,
		&roles,
		&authorities,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.LastActive,
	)
	if err != nil {
		return domain.Account{}, err
	}

	a.ID = uuidOrEmpty(idUUID)
	a.Status = domain.AccountStatus(status)
	a.Roles = toTokens[domain.Role](roles)
	a.Authorities = toTokens[domain.Authority](authorities)
	return a, nil
}

func toTokens[T ~string](in []string) []T {
	out := make([]T, 0, len(in))
	for _, s := range in {
		out = append(out, T(s))
	}
	return out
}

func fromTokens[T ~string](in []T) []string {
	out := make([]string, 0, len(in))
	for _, s := range domain.DedupeTokens(in) {
		out = append(out, string(s))
	}
	return out
}

func uuidOrEmpty(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuidBytesToString(u.Bytes)
}

func uuidBytesToString(b [16]byte) string {
	var buf [36]byte
	hex.Encode(buf[0:8], b[0:4])
	buf[8] = '-'
	hex.Encode(buf[9:13], b[4:6])
	buf[13] = '-'
	hex.Encode(buf[14:18], b[6:8])
	buf[18] = '-'
	hex.Encode(buf[19:23], b[8:10])
	buf[23] = '-'
	hex.Encode(buf[24:36], b[10:16])
	return string(buf[:])
}
