package event

import "testing"

func TestDecodeJSONSelectNested(t *testing.T) {
	ev, err := DecodeJSON([]byte(`{"EventID":1,"Image":"C:\\Windows\\System32\\cmd.exe","nested":{"a":{"b":"c"}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	v, ok := ev.Select("nested.a.b")
	if !ok {
		t.Fatalf("expected nested.a.b to resolve")
	}
	s, _ := v.AsString()
	if s != "c" {
		t.Fatalf("expected c, got %q", s)
	}

	if _, ok := ev.Select("nested.missing.b"); ok {
		t.Fatalf("expected missing path to be absent")
	}
}

func TestDecodeJSONNumericStringCoercion(t *testing.T) {
	ev, err := DecodeJSON([]byte(`{"EventID":1234}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	v, ok := ev.Select("EventID")
	if !ok {
		t.Fatalf("expected EventID to resolve")
	}
	s, ok := v.AsString()
	if !ok || s != "1234" {
		t.Fatalf("expected string coercion to 1234, got %q ok=%v", s, ok)
	}

	ev2, err := DecodeJSON([]byte(`{"EventID":"1234"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	v2, _ := ev2.Select("EventID")
	i, ok := v2.AsInt()
	if !ok || i != 1234 {
		t.Fatalf("expected int coercion to 1234, got %d ok=%v", i, ok)
	}
}

func TestDecodeJSONKeywordsMeaningful(t *testing.T) {
	ev, err := DecodeJSON([]byte(`{"a":"powershell.exe","b":1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	kws, meaningful := ev.Keywords()
	if !meaningful {
		t.Fatalf("expected keywords to be meaningful")
	}
	if len(kws) != 1 || kws[0] != "powershell.exe" {
		t.Fatalf("unexpected keywords: %+v", kws)
	}

	ev2, err := DecodeJSON([]byte(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, meaningful := ev2.Keywords(); meaningful {
		t.Fatalf("expected keywords to be meaningless for purely numeric event")
	}
}

func TestDecodeJSONRejectsNonObject(t *testing.T) {
	if _, err := DecodeJSON([]byte(`[1,2,3]`)); err == nil {
		t.Fatalf("expected error decoding non-object payload")
	}
}
