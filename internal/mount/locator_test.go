package mount

import "testing"

func TestLocateExactMatchUnmountable(t *testing.T) {
	mounts := []Record{
		{URI: "dav://localhost:12345/", CanUnmount: true},
		{URI: "dav://other:1/", CanUnmount: true},
	}
	_, res := Locate(mounts, "dav://localhost:12345")
	if res != Unmountable {
		t.Fatalf("got %v", res)
	}
}

func TestLocateExactMatchNotUnmountable(t *testing.T) {
	mounts := []Record{{URI: "dav://localhost:12345/", CanUnmount: false}}
	_, res := Locate(mounts, "dav://localhost:12345")
	if res != NotUnmountable {
		t.Fatalf("got %v", res)
	}
}

func TestLocatePortFallbackAcrossHostRepresentations(t *testing.T) {
	mounts := []Record{{URI: "http://127.0.0.1:12345/", CanUnmount: true}}
	rec, res := Locate(mounts, "dav://localhost:12345")
	if res != Unmountable {
		t.Fatalf("got %v", res)
	}
	if rec.URI != "http://127.0.0.1:12345/" {
		t.Fatalf("matched %q", rec.URI)
	}
}

func TestLocateEmptyTable(t *testing.T) {
	if _, res := Locate(nil, "dav://localhost:12345"); res != NotFound {
		t.Fatalf("got %v", res)
	}
}

func TestLocateNoMatchByURIOrPort(t *testing.T) {
	mounts := []Record{{URI: "dav://other:1/", CanUnmount: true}}
	if _, res := Locate(mounts, "dav://localhost:12345"); res != NotFound {
		t.Fatalf("got %v", res)
	}
}

func TestLocateTrailingSlashInvariance(t *testing.T) {
	tables := [][]Record{
		{{URI: "dav://localhost:12345/", CanUnmount: true}},
		{{URI: "dav://localhost:12345", CanUnmount: true}},
	}
	for _, mounts := range tables {
		for _, target := range []string{"dav://localhost:12345", "dav://localhost:12345/"} {
			if _, res := Locate(mounts, target); res != Unmountable {
				t.Errorf("mounts=%v target=%q: got %v", mounts, target, res)
			}
		}
	}
}

func TestLocateExactMatchWinsOverPortFallback(t *testing.T) {
	mounts := []Record{
		{URI: "http://127.0.0.1:12345/", CanUnmount: true},
		{URI: "dav://localhost:12345/", CanUnmount: false},
	}
	rec, res := Locate(mounts, "dav://localhost:12345")
	if res != NotUnmountable || rec.URI != "dav://localhost:12345/" {
		t.Fatalf("exact pass must win: got %v (%q)", res, rec.URI)
	}
}

func TestLocateFirstMatchWinsOnDuplicates(t *testing.T) {
	mounts := []Record{
		{URI: "dav://a/", CanUnmount: false},
		{URI: "dav://a/", CanUnmount: true},
	}
	if _, res := Locate(mounts, "dav://a"); res != NotUnmountable {
		t.Fatalf("got %v, want first entry's flag", res)
	}
}

func TestLocateIgnoresPortlessTargetInFallback(t *testing.T) {
	mounts := []Record{{URI: "dav://other:1/", CanUnmount: true}}
	if _, res := Locate(mounts, "dav://localhost"); res != NotFound {
		t.Fatalf("got %v; portless target must not fall back", res)
	}
}

func TestTargetPort(t *testing.T) {
	cases := map[string]string{
		"dav://localhost:12345":  "12345",
		"dav://localhost:12345/": "12345",
		"dav://localhost":        "",
		"dav://localhost:":       "",
		"dav://host:12x45":       "",
		"":                       "",
	}
	for in, want := range cases {
		if got := targetPort(in); got != want {
			t.Errorf("targetPort(%q) = %q want %q", in, got, want)
		}
	}
}
