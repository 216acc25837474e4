package model

import "testing"

func TestParseModule(t *testing.T) {
	tests := []struct {
		in      string
		want    Module
		wantErr bool
	}{
		{"search", ModuleSearch, false},
		{" Audit ", ModuleAudit, false},
		{"maps", ModuleMap, false},
		{"map", ModuleMap, false},
		{"visualize", ModuleVisualize, false},
		{"timeline", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseModule(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseModule(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseModule(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestModules_AllLabeled(t *testing.T) {
	seen := make(map[Module]bool)
	for _, m := range Modules() {
		if seen[m] {
			t.Errorf("duplicate module %s", m)
		}
		seen[m] = true
		if m.Label() == string(m) {
			t.Errorf("module %s has no label", m)
		}
	}
	if len(seen) != 7 {
		t.Errorf("expected 7 modules, got %d", len(seen))
	}
}

func TestParseEventType(t *testing.T) {
	for _, s := range []string{"ownership", "birth", "death", "legal"} {
		if got := ParseEventType(s); string(got) != s {
			t.Errorf("ParseEventType(%q) = %s", s, got)
		}
	}
	for _, s := range []string{"", "marriage", "Birth"} {
		if got := ParseEventType(s); got != EventOther {
			t.Errorf("ParseEventType(%q) = %s, want other", s, got)
		}
	}
}

func TestAnalysisResult_Clone(t *testing.T) {
	score := 80
	r := &AnalysisResult{
		Text:              "x",
		Sources:           []GroundingSource{{Title: "a", URI: "https://a", Category: CategoryWeb}},
		VerificationScore: &score,
	}
	c := r.Clone()
	c.Sources[0].Title = "changed"
	*c.VerificationScore = 10

	if r.Sources[0].Title != "a" || *r.VerificationScore != 80 {
		t.Error("Clone must not share state with the original")
	}
	if (*AnalysisResult)(nil).Clone() != nil {
		t.Error("nil clone should be nil")
	}
}

func TestDocument_DetectedMIMEType(t *testing.T) {
	png := Document{Data: []byte("\x89PNG\r\n\x1a\n0000")}
	if png.DetectedMIMEType() != "image/png" || !png.IsImage() {
		t.Errorf("expected sniffed image/png, got %s", png.DetectedMIMEType())
	}

	text := Document{Data: []byte("plain words")}
	if text.IsImage() {
		t.Error("text should not be an image")
	}

	declared := Document{MIMEType: "image/jpeg", Data: []byte("x")}
	if declared.DetectedMIMEType() != "image/jpeg" {
		t.Error("declared MIME type should win")
	}
}
