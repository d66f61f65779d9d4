package app

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxTracedQueryLength = 512
	postgresPingTimeout  = 5 * time.Second
)

var (
	sqlLineCommentRegex = regexp.MustCompile(`--[^\n]*`)
	sqlWhitespaceRegex  = regexp.MustCompile(`\s+`)
)

// postgresSettings is what the app needs out of DB_URL. Host and name are
// safe to log; dsn carries credentials.
type postgresSettings struct {
	dsn    string
	host   string
	dbName string
}

// parsePostgresSettings accepts both URL and key=value DSNs. For URLs it adds
// disable_prepared_binary_result=yes unless the caller already chose a value,
// which keeps pgbouncer in transaction mode happy.
func parsePostgresSettings(raw string, disablePreparedBinary bool) postgresSettings {
	raw = strings.TrimSpace(raw)
	out := postgresSettings{dsn: raw}

	parsed, err := url.Parse(raw)
	if err == nil && parsed.Scheme != "" {
		out.host = parsed.Hostname()
		out.dbName = strings.TrimPrefix(parsed.Path, "/")
		if disablePreparedBinary {
			query := parsed.Query()
			if query.Get("disable_prepared_binary_result") == "" {
				query.Set("disable_prepared_binary_result", "yes")
				parsed.RawQuery = query.Encode()
				out.dsn = parsed.String()
			}
		}
		return out
	}

	for _, token := range strings.Fields(raw) {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "host":
			out.host = value
		case "dbname":
			out.dbName = value
		}
	}
	return out
}

func openPostgres(ctx context.Context, settings postgresSettings) (*sqlx.DB, error) {
	attrs := []attribute.KeyValue{attribute.String("db.system", "postgresql")}
	if settings.host != "" {
		attrs = append(attrs, attribute.String("server.address", settings.host))
	}

	db, err := otelsqlx.Open("postgres", settings.dsn,
		otelsql.WithAttributes(attrs...),
		otelsql.WithDBName(settings.dbName),
		otelsql.WithQueryFormatter(traceQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres host=%s db=%s: %w", settings.host, settings.dbName, err)
	}
	return db, nil
}

// traceQuery turns multi-line SQL into a single span-friendly line.
func traceQuery(query string) string {
	query = sqlLineCommentRegex.ReplaceAllString(query, " ")
	query = strings.TrimSpace(sqlWhitespaceRegex.ReplaceAllString(query, " "))
	if len(query) <= maxTracedQueryLength {
		return query
	}

	cut := maxTracedQueryLength
	for cut > 0 && !utf8.RuneStart(query[cut]) {
		cut--
	}
	return query[:cut] + "..."
}
