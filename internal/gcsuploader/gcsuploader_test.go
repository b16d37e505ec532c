package gcsuploader

import "testing"

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://bucket/backups/ledger.json", wantBucket: "bucket", wantObject: "backups/ledger.json"},
		{uri: "gs://bucket/a", wantBucket: "bucket", wantObject: "a"},
		{uri: "gs://bucket", wantErr: true},
		{uri: "gs://bucket/", wantErr: true},
		{uri: "s3://bucket/a", wantErr: true},
		{uri: "/local/path.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = %q, %q", tt.uri, bucket, object)
			}
		})
	}
}

func TestURIRoundTrip(t *testing.T) {
	uri := URI("b", "backups/x.json")
	bucket, object, err := ParseGCSURI(uri)
	if err != nil || bucket != "b" || object != "backups/x.json" {
		t.Errorf("ParseGCSURI(URI(...)) = %q, %q, %v", bucket, object, err)
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/backups/ledger.json": "ledger.json",
		"gs://bucket/file.json":           "file.json",
		"gs://bucket":                     "bucket",
	}
	for uri, want := range tests {
		if got := ExtractFilenameFromGCSURI(uri); got != want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor("/tmp/ledger.json"); got != "application/json" {
		t.Errorf("json content type = %s", got)
	}
	if got := contentTypeFor("/tmp/monthly.png"); got != "image/png" {
		t.Errorf("png content type = %s", got)
	}
}
