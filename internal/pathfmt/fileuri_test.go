package pathfmt

import "testing"

func TestFileURI(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "absolute path",
			path: "/home/user/file.json",
			want: "file:///home/user/file.json",
		},
		{
			name: "relative path unchanged",
			path: ".rip/artifacts/sha256/ab/cdef0123.json",
			want: ".rip/artifacts/sha256/ab/cdef0123.json",
		},
		{
			name: "already file:// prefixed",
			path: "file:///home/user/file.json",
			want: "file:///home/user/file.json",
		},
		{
			name: "https URL unchanged",
			path: "https://github.com/org/repo",
			want: "https://github.com/org/repo",
		},
		{
			name: "empty string",
			path: "",
			want: "",
		},
		{
			name: "path with spaces",
			path: "/path/with spaces/file.json",
			want: "file:///path/with spaces/file.json",
		},
		{
			name: "root path",
			path: "/",
			want: "file:///",
		},
		{
			name: "deeply nested absolute path",
			path: "/home/user/projects/rip/.rip/artifacts/sha256/ab/cdef0123456789.json",
			want: "file:///home/user/projects/rip/.rip/artifacts/sha256/ab/cdef0123456789.json",
		},
		{
			name: "path with special characters",
			path: "/tmp/file (1).json",
			want: "file:///tmp/file (1).json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FileURI(tt.path)
			if got != tt.want {
				t.Errorf("FileURI(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
