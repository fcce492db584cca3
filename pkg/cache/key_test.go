package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "endpoint only",
			key:  Key{Endpoint: "/graphql/query/"},
			want: "mediafetch:graphql/query",
		},
		{
			name: "with subject",
			key:  Key{Endpoint: "/graphql/query/", Subject: "42"},
			want: "mediafetch:graphql/query:42",
		},
		{
			name: "query params sorted",
			key: Key{
				Endpoint: "/graphql/query/",
				Subject:  "42",
				Query:    url.Values{"variables": {`{"after":"abc"}`}, "query_hash": {"h"}},
			},
			want: `mediafetch:graphql/query:42:query_hash=h:variables={"after":"abc"}`,
		},
		{
			name: "repeated values sorted",
			key:  Key{Query: url.Values{"a": {"2", "1"}}},
			want: "mediafetch:a=1,2",
		},
		{
			name: "empty",
			key:  Key{},
			want: "mediafetch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key{Endpoint: "/x/", Query: url.Values{"b": {"2"}, "a": {"1"}, "c": {"3"}}}
	b := Key{Endpoint: "x", Query: url.Values{"c": {"3"}, "a": {"1"}, "b": {"2"}}}

	for i := 0; i < 10; i++ {
		if a.String() != b.String() {
			t.Fatalf("keys differ: %q vs %q", a.String(), b.String())
		}
	}
}
