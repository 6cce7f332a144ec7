package event

import (
	"encoding/json"
	"testing"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID("url", "https://pulep.example/InformesPublicos/EventoFichap/1")
	id2 := GenerateID("url", "https://pulep.example/InformesPublicos/EventoFichap/1")

	if id1 != id2 {
		t.Errorf("GenerateID should be deterministic, got %s vs %s", id1, id2)
	}
	if len(id1) != 40 { // SHA1 produces 40 hex characters
		t.Errorf("expected ID length of 40, got %d", len(id1))
	}
	if GenerateID("cells", "x") == GenerateID("url", "x") {
		t.Error("namespace should change the ID")
	}
}

func TestResultRowKey(t *testing.T) {
	withLink := ResultRow{DetailURL: "https://pulep.example/ficha/7", Fields: NewRecord("Evento", "A")}
	sameLink := ResultRow{DetailURL: "https://pulep.example/ficha/7", Fields: NewRecord("Evento", "B")}
	if withLink.Key() != sameLink.Key() {
		t.Error("rows with the same detail link should share a key")
	}

	noLink1 := ResultRow{Fields: NewRecord("Evento", "A", "Ciudad", "Bogotá")}
	noLink2 := ResultRow{Fields: NewRecord("Evento", "A", "Ciudad", "Cali")}
	if noLink1.Key() == noLink2.Key() {
		t.Error("rows without links should be keyed by their cells")
	}
}

func TestRecordOrder(t *testing.T) {
	var r Record
	r.Set("b", "1")
	r.Set("a", "2")
	r.Set("b", "3")

	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("Keys() = %v, want [b a]", keys)
	}
	if r.Get("b") != "3" {
		t.Errorf("Get(b) = %q, want 3", r.Get("b"))
	}
	if r.SetIfAbsent("a", "x") {
		t.Error("SetIfAbsent should not overwrite")
	}
	if r.Get("missing") != "" || r.Has("missing") {
		t.Error("missing key should be empty")
	}
}

func TestRecordJSON(t *testing.T) {
	r := NewRecord("Zeta", "1", "Alfa", "dos")

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"Zeta":"1","Alfa":"dos"}` {
		t.Errorf("Marshal = %s", data)
	}

	var decoded Record
	if err := json.Unmarshal([]byte(`{"EventoId": 42, "Nombre": "Festival", "Activo": true, "Nota": null}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	wantKeys := []string{"EventoId", "Nombre", "Activo", "Nota"}
	gotKeys := decoded.Keys()
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("keys = %v, want %v", gotKeys, wantKeys)
	}
	for i := range wantKeys {
		if gotKeys[i] != wantKeys[i] {
			t.Errorf("key %d = %q, want %q", i, gotKeys[i], wantKeys[i])
		}
	}
	if decoded.Get("EventoId") != "42" {
		t.Errorf("EventoId = %q, want 42", decoded.Get("EventoId"))
	}
	if decoded.Get("Activo") != "true" {
		t.Errorf("Activo = %q, want true", decoded.Get("Activo"))
	}
	if decoded.Get("Nota") != "" {
		t.Errorf("Nota = %q, want empty", decoded.Get("Nota"))
	}
}

func TestFoldKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Año", "ano"},
		{"  NOMBRE   DEL  Evento ", "nombre del evento"},
		{"Categoría", "categoria"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FoldKey(tt.in); got != tt.want {
				t.Errorf("FoldKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFilterSetLookup(t *testing.T) {
	fs := FilterSet{
		{Name: "anio", Options: []FilterOption{{Label: "2025", Value: "2025"}}},
		{Name: "departamento"},
	}

	if _, ok := fs.Lookup("anio"); !ok {
		t.Error("expected anio to be found")
	}
	if _, ok := fs.Lookup("ciudad"); ok {
		t.Error("did not expect ciudad")
	}
	names := fs.Names()
	if len(names) != 2 || names[1] != "departamento" {
		t.Errorf("Names() = %v", names)
	}
}

func TestWarningString(t *testing.T) {
	tests := []struct {
		w    Warning
		want string
	}{
		{Warning{Page: 2, Row: 3, Message: "x"}, "page 2, row 3: x"},
		{Warning{Page: 2, Message: "x"}, "page 2: x"},
		{Warning{Row: 3, Message: "x"}, "row 3: x"},
		{Warning{Message: "x"}, "x"},
	}
	for _, tt := range tests {
		if got := tt.w.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
