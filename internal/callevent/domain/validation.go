package domain

import (
	"sort"
	"strings"
)

// ValidationErrors acumula todos los motivos de rechazo por campo.
// El validador no corta en el primer fallo: el cliente recibe el
// conjunto completo en una sola respuesta.
type ValidationErrors map[string][]string

func (v ValidationErrors) Add(field, reason string) {
	v[field] = append(v[field], reason)
}

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Error permite usar el conjunto como error donde haga falta.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed:")
	for _, f := range fields {
		b.WriteString(" " + f + ": " + strings.Join(v[f], "; "))
	}
	return b.String()
}
