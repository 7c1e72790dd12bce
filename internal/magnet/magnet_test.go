package magnet

import (
	"errors"
	"strings"
	"testing"
)

const sampleHash = "abcdef0123456789abcdef0123456789abcdef01"

func TestExtractInfoHash(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "magnet", in: "magnet:?xt=urn:btih:" + sampleHash + "&dn=Movie", want: sampleHash},
		{name: "uppercase", in: "magnet:?xt=urn:btih:" + strings.ToUpper(sampleHash), want: sampleHash},
		{name: "bare hash", in: strings.ToUpper(sampleHash), want: sampleHash},
		{name: "short hash", in: "magnet:?xt=urn:btih:abc123", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractInfoHash(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidMagnet) {
					t.Fatalf("expected ErrInvalidMagnet, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestServiceParamIsStripped(t *testing.T) {
	link := "magnet:?xt=urn:btih:" + strings.ToUpper(sampleHash) + "&dn=Show&service=torbox"

	if got := PreferredService(link); got != "torbox" {
		t.Fatalf("PreferredService = %q, want torbox", got)
	}
	stripped := StripService(link)
	if strings.Contains(stripped, "service=") {
		t.Fatalf("service param still present: %q", stripped)
	}
	hash, err := ExtractInfoHash(stripped)
	if err != nil || hash != sampleHash {
		t.Fatalf("ExtractInfoHash = %q, %v", hash, err)
	}
}

func TestNormalize(t *testing.T) {
	withService := Build(sampleHash, "Movie 2021 1080p", "realdebrid")

	tests := []struct {
		name        string
		in          string
		wantService string
	}{
		{name: "bare hash", in: sampleHash},
		{name: "magnet", in: withService, wantService: "realdebrid"},
		{name: "token", in: EncodeToken(withService), wantService: "realdebrid"},
		{name: "token of hash", in: EncodeToken(sampleHash)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			link, hash, service, err := Normalize(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if hash != sampleHash {
				t.Fatalf("hash = %q", hash)
			}
			if service != tc.wantService {
				t.Fatalf("service = %q, want %q", service, tc.wantService)
			}
			if !strings.HasPrefix(link, "magnet:?xt=urn:btih:") || strings.Contains(link, "service=") {
				t.Fatalf("unexpected link %q", link)
			}
		})
	}

	if _, _, _, err := Normalize("!!not a token!!"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestDisplayName(t *testing.T) {
	link := Build(sampleHash, "Show S02E05 1080p", "")
	if got := DisplayName(link); got != "Show S02E05 1080p" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := DisplayName("magnet:?xt=urn:btih:" + sampleHash); got != "" {
		t.Fatalf("expected empty display name, got %q", got)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	link := Build(sampleHash, "Movie", "")
	decoded, err := DecodeToken(EncodeToken(link))
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if decoded != link {
		t.Fatalf("decoded %q, want %q", decoded, link)
	}
}
