// Package filter — неизменяемые составные условия выборки накладных.
// Выражения комбинируются чистыми функциями (без мутаций), хранилище
// опускает их в SQL через SQL().
package filter

import (
	"fmt"
	"strings"
)

type kind int

const (
	kindNone kind = iota
	kindCond
	kindAnd
	kindOr
)

// Expr — дерево условий. Нулевое значение — пустое выражение
// (нейтральный элемент для And/Or).
type Expr struct {
	kind  kind
	field string
	op    string
	args  []any

	left  *Expr
	right *Expr
}

func (e Expr) IsZero() bool { return e.kind == kindNone }

func cond(field, op string, args ...any) Expr {
	return Expr{kind: kindCond, field: field, op: op, args: args}
}

func Eq(field string, v any) Expr { return cond(field, "=", v) }
func Lt(field string, v any) Expr { return cond(field, "<", v) }
func Gt(field string, v any) Expr { return cond(field, ">", v) }

func In(field string, vs ...any) Expr {
	return cond(field, "IN", vs...)
}

func (e Expr) And(other Expr) Expr {
	if e.IsZero() {
		return other
	}
	if other.IsZero() {
		return e
	}
	return Expr{kind: kindAnd, left: &e, right: &other}
}

func (e Expr) Or(other Expr) Expr {
	if e.IsZero() {
		return other
	}
	if other.IsZero() {
		return e
	}
	return Expr{kind: kindOr, left: &e, right: &other}
}

// SQL возвращает текст условия с позиционными плейсхолдерами ($start, $start+1, ...)
// и аргументы в порядке плейсхолдеров. Пустое выражение даёт "TRUE".
func (e Expr) SQL(start int) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, 4)
	n := start
	e.write(&sb, &args, &n)
	if sb.Len() == 0 {
		return "TRUE", nil
	}
	return sb.String(), args
}

func (e Expr) write(sb *strings.Builder, args *[]any, n *int) {
	switch e.kind {
	case kindNone:
		return
	case kindCond:
		if e.op == "IN" {
			sb.WriteString(e.field)
			sb.WriteString(" IN (")
			for i, v := range e.args {
				if i > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(sb, "$%d", *n)
				*args = append(*args, v)
				*n++
			}
			sb.WriteString(")")
			return
		}
		fmt.Fprintf(sb, "%s %s $%d", e.field, e.op, *n)
		*args = append(*args, e.args[0])
		*n++
	case kindAnd, kindOr:
		op := " AND "
		if e.kind == kindOr {
			op = " OR "
		}
		sb.WriteString("(")
		e.left.write(sb, args, n)
		sb.WriteString(op)
		e.right.write(sb, args, n)
		sb.WriteString(")")
	}
}
