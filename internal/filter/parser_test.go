package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/pulep-events/internal/event"
)

func TestParseManual(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      map[string][]string
		wantOrder []string
		wantErr   bool
	}{
		{
			name:      "two fields",
			input:     "anio=2025,departamento=11",
			want:      map[string][]string{"anio": {"2025"}, "departamento": {"11"}},
			wantOrder: []string{"anio", "departamento"},
		},
		{
			name:      "spaces and empty items",
			input:     " anio = 2025 , , departamento= Bogotá D.C. ",
			want:      map[string][]string{"anio": {"2025"}, "departamento": {"Bogotá D.C."}},
			wantOrder: []string{"anio", "departamento"},
		},
		{
			name:      "todos and empty values dropped",
			input:     "anio=(Todos),departamento=,tipo=musica",
			want:      map[string][]string{"tipo": {"musica"}},
			wantOrder: []string{"tipo"},
		},
		{
			name:      "repeated field",
			input:     "tipo=musica,tipo=teatro",
			want:      map[string][]string{"tipo": {"musica", "teatro"}},
			wantOrder: []string{"tipo"},
		},
		{
			name:      "value containing equals sign",
			input:     "q=a=b",
			want:      map[string][]string{"q": {"a=b"}},
			wantOrder: []string{"q"},
		},
		{
			name:      "empty input",
			input:     "",
			want:      map[string][]string{},
			wantOrder: []string{},
		},
		{name: "missing equals", input: "anio2025", wantErr: true},
		{name: "missing field", input: "=2025", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ParseManual(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrder, sel.Fields())
			for f, values := range tt.want {
				assert.Equal(t, values, sel.Get(f), f)
			}
		})
	}
}

func TestParseAssignments(t *testing.T) {
	sel, err := ParseAssignments([]string{"anio=2025", "departamento=11", ""})
	require.NoError(t, err)
	assert.Equal(t, "anio=2025, departamento=11", sel.String())
}

func TestNormalize(t *testing.T) {
	sel := New()
	sel.Add("anio", " 2025 ")
	sel.Add("departamento", "todos")
	sel.Add("municipio", "  ")

	got := Normalize(sel)
	assert.Equal(t, []string{"anio"}, got.Fields())
	assert.Equal(t, []string{"2025"}, got.Get("anio"))
}

func discoveredFilters() event.FilterSet {
	return event.FilterSet{
		{Name: "anio", Options: []event.FilterOption{
			{Label: "(Todos)", Value: ""},
			{Label: "2025", Value: "2025"},
			{Label: "2024", Value: "2024"},
		}},
		{Name: "departamento", Options: []event.FilterOption{
			{Label: "(Todos)", Value: ""},
			{Label: "Bogotá, D.C.", Value: "11"},
			{Label: "Antioquia", Value: "05"},
		}},
		{Name: "TipoEvento", Options: []event.FilterOption{
			{Label: "Música", Value: "MUS"},
		}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string][]string
		order   []string
		want    string
		wantErr error
	}{
		{
			name:  "values pass through",
			input: map[string][]string{"anio": {"2025"}, "departamento": {"11"}},
			order: []string{"anio", "departamento"},
			want:  "anio=2025, departamento=11",
		},
		{
			name:  "labels resolve to values ignoring accents and case",
			input: map[string][]string{"departamento": {"bogota, d.c."}, "tipoevento": {"MUSICA"}},
			order: []string{"departamento", "tipoevento"},
			want:  "departamento=11, TipoEvento=MUS",
		},
		{
			name:  "value matched case-insensitively",
			input: map[string][]string{"TipoEvento": {"mus"}},
			order: []string{"TipoEvento"},
			want:  "TipoEvento=MUS",
		},
		{
			name:  "all option dropped",
			input: map[string][]string{"anio": {"(todos)"}},
			order: []string{"anio"},
			want:  "No active filters",
		},
		{
			name:    "unknown field",
			input:   map[string][]string{"ciudad": {"Cali"}},
			order:   []string{"ciudad"},
			wantErr: ErrUnknownField,
		},
		{
			name:    "unknown option",
			input:   map[string][]string{"anio": {"1999"}},
			order:   []string{"anio"},
			wantErr: ErrUnknownOption,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := New()
			for _, f := range tt.order {
				for _, v := range tt.input[f] {
					sel.Add(f, v)
				}
			}

			got, err := Validate(sel, discoveredFilters())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestValidate_ErrorListsChoices(t *testing.T) {
	sel := New()
	sel.Add("municipio", "001")

	_, err := Validate(sel, discoveredFilters())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anio, departamento, TipoEvento")
}
