package chief

import "testing"

const sampleReply = "1\\fileHeader\\CHIEF\\SPIRE\\licenceReply\\201902080025\\49543\n" +
	"2\\accepted\\20200000001P\n" +
	"3\\rejected\\20200000002P\n" +
	"4\\error\\1234\\Invalid licence type\n" +
	"5\\end\\rejected\\3\n" +
	"6\\fileTrailer\\1\\1\\0\n"

func TestParseReply(t *testing.T) {
	reply, err := ParseReply(sampleReply)
	if err != nil {
		t.Fatalf("parse reply: %v", err)
	}
	if reply.RunNumber != "49543" {
		t.Fatalf("expected run number 49543, got %q", reply.RunNumber)
	}
	if len(reply.Accepted) != 1 || reply.Accepted[0] != "20200000001P" {
		t.Fatalf("unexpected accepted list %v", reply.Accepted)
	}
	if len(reply.Rejected) != 1 {
		t.Fatalf("expected 1 rejection, got %d", len(reply.Rejected))
	}
	rej := reply.Rejected[0]
	if rej.TransactionRef != "20200000002P" {
		t.Fatalf("unexpected rejected ref %q", rej.TransactionRef)
	}
	if len(rej.Errors) != 1 || rej.Errors[0].Code != "1234" {
		t.Fatalf("unexpected rejection errors %v", rej.Errors)
	}
	if !reply.HasRejections() {
		t.Fatal("expected HasRejections")
	}
}

func TestParseReply_AllAccepted(t *testing.T) {
	data := "1\\fileHeader\\CHIEF\\SPIRE\\licenceReply\\201902080025\\100\n" +
		"2\\accepted\\X1\n" +
		"3\\accepted\\X2\n" +
		"4\\fileTrailer\\2\\0\\0\n"
	reply, err := ParseReply(data)
	if err != nil {
		t.Fatalf("parse reply: %v", err)
	}
	if reply.HasRejections() {
		t.Fatal("expected no rejections")
	}
	if len(reply.Accepted) != 2 {
		t.Fatalf("expected 2 accepted, got %d", len(reply.Accepted))
	}
}

func TestParseReply_FileError(t *testing.T) {
	data := "1\\fileHeader\\CHIEF\\SPIRE\\licenceReply\\201902080025\\100\n" +
		"2\\fileError\\18\\Record type 'licence' not recognised\n" +
		"3\\fileTrailer\\0\\0\\1\n"
	reply, err := ParseReply(data)
	if err != nil {
		t.Fatalf("parse reply: %v", err)
	}
	if len(reply.FileErrors) != 1 || reply.FileErrors[0].Code != "18" {
		t.Fatalf("unexpected file errors %v", reply.FileErrors)
	}
	if !reply.HasRejections() {
		t.Fatal("expected file errors to count as rejections")
	}
}

func TestParseReply_RejectsNonReply(t *testing.T) {
	if _, err := ParseReply(sampleUsageFile); err == nil {
		t.Fatal("expected non-reply data id to be rejected")
	}
}
