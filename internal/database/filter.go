package database

import (
	"fmt"
	"strings"

	"github.com/civicreport/civic-server/internal/access"
)

// trimExpr strips leading and trailing whitespace of any kind, as strings.TrimSpace does.
const trimExpr = `regexp_replace(%s, '^\s+|\s+$', '', 'g')`

// nameExpr mirrors access.NormalizeName in SQL.
func nameExpr(col string) string {
	return "lower(" + fmt.Sprintf(trimExpr, col) + ")"
}

// blockExpr mirrors access.NormalizeBlock in SQL.
func blockExpr(col string) string {
	return `regexp_replace(` + nameExpr(col) + `, '(\s+tehsil)+$', '')`
}

// locationColumns names the SQL expressions holding each location field.
type locationColumns struct {
	state, district, block, village string
}

var (
	// flatColumns is the layout of the admins and complaints tables.
	flatColumns = locationColumns{"state", "district", "block", "village"}
	// jsonColumns reads the location JSONB snapshot on activity_logs.
	jsonColumns = locationColumns{
		"(location->>'state')", "(location->>'district')", "(location->>'block')", "(location->>'village')",
	}
)

// query accumulates WHERE clauses and their positional parameters.
type query struct {
	clauses []string
	args    []any
}

// arg appends v and returns its placeholder.
func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *query) where(clause string) {
	q.clauses = append(q.clauses, clause)
}

func (q *query) sql() string {
	if len(q.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.clauses, " AND ")
}

// location adds f as a predicate over the state/district/block/village columns.
func (q *query) location(f access.Filter) {
	q.locationOn(f, flatColumns)
}

func (q *query) locationOn(f access.Filter, cols locationColumns) {
	switch {
	case f.MatchNone:
		q.where("FALSE")
		return
	case f.MatchAll:
		return
	}
	if f.State != "" {
		q.where(nameExpr(cols.state) + " = " + q.arg(access.NormalizeName(f.State)))
	}
	if f.District != "" {
		q.where(nameExpr(cols.district) + " = " + q.arg(access.NormalizeName(f.District)))
	}
	if f.Block != "" {
		q.where(blockExpr(cols.block) + " = " + q.arg(access.NormalizeBlock(f.Block)))
	}
	if f.Village != "" {
		q.where(nameExpr(cols.village) + " = " + q.arg(access.NormalizeName(f.Village)))
	}
}

// contains adds a case-insensitive literal substring match of s against any of cols.
func (q *query) contains(s string, cols ...string) {
	p := q.arg("%" + escapeLike(s) + "%")
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, c, p)
	}
	q.where("(" + strings.Join(parts, " OR ") + ")")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// WhereLocation compiles f into a SQL predicate, numbering placeholders after
// the parameters already in args. An unconstrained filter yields "TRUE".
func WhereLocation(f access.Filter, args []any) (string, []any) {
	q := &query{args: args}
	q.location(f)
	if len(q.clauses) == 0 {
		return "TRUE", q.args
	}
	return strings.Join(q.clauses, " AND "), q.args
}
