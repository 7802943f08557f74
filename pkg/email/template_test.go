package email

import "testing"

func TestRender(t *testing.T) {
	got := Render("<p>Hi {{first_name}} {{last_name}}</p>", map[string]string{
		"first_name": "Dana",
		"last_name":  "Reyes",
	})
	if got != "<p>Hi Dana Reyes</p>" {
		t.Fatalf("unexpected render: %s", got)
	}
}

func TestRenderLeavesUnknownTokens(t *testing.T) {
	got := Render("Hi {{first_name}}, visit {{link}}", map[string]string{"first_name": "Dana"})
	if got != "Hi Dana, visit {{link}}" {
		t.Fatalf("unexpected render: %s", got)
	}
}

func TestRenderNoValues(t *testing.T) {
	tpl := "Hi {{first_name}}"
	if got := Render(tpl, nil); got != tpl {
		t.Fatalf("expected template unchanged, got %s", got)
	}
}

func TestRenderRepeatedToken(t *testing.T) {
	got := Render("{{name}} and {{name}}", map[string]string{"name": "Dana"})
	if got != "Dana and Dana" {
		t.Fatalf("unexpected render: %s", got)
	}
}
