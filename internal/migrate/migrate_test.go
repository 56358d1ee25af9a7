package migrate

import "testing"

func TestStatements(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{name: "empty", src: "", want: 0},
		{name: "single without trailing semicolon", src: "CREATE TABLE a (id TEXT)", want: 1},
		{name: "two statements", src: "CREATE TABLE a (id TEXT);\n\nCREATE INDEX i ON a(id);\n", want: 2},
		{name: "inline semicolon kept", src: "INSERT INTO a VALUES ('x;y');\n", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Statements(tt.src)
			if len(got) != tt.want {
				t.Fatalf("Statements(%q) returned %d statements, want %d: %q", tt.src, len(got), tt.want, got)
			}
		})
	}
}
