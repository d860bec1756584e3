package seqio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFASTAMultiLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contigs.fasta")
	writeText(t, path, ">NODE_1_length_8_cov_5.0 extra words\nACGT\nACGT\n\n>NODE_2\nGG\n>empty\n")

	records, err := ReadFASTA(path)
	if err != nil {
		t.Fatalf("ReadFASTA: %v", err)
	}
	want := []Record{
		{Name: "NODE_1_length_8_cov_5.0", Sequence: "ACGTACGT"},
		{Name: "NODE_2", Sequence: "GG"},
		{Name: "empty", Sequence: ""},
	}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Fatalf("record %d: want %+v, got %+v", i, want[i], records[i])
		}
	}
}

func TestReadFASTAKeepsNamelessRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contigs.fasta")
	writeText(t, path, ">a\nAC\n>\nGG\n>c\nTT\n")

	records, err := ReadFASTA(path)
	if err != nil {
		t.Fatalf("ReadFASTA: %v", err)
	}
	want := []Record{{Name: "a", Sequence: "AC"}, {Name: "", Sequence: "GG"}, {Name: "c", Sequence: "TT"}}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Fatalf("record %d: want %+v, got %+v", i, want[i], records[i])
		}
	}
}

func TestReadFASTARejectsHeaderlessData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.fasta")
	writeText(t, path, "ACGT\n>x\nAC\n")
	if _, err := ReadFASTA(path); err == nil {
		t.Fatalf("expected error for sequence before header")
	}
}

func TestEncodeFASTAWrapsLines(t *testing.T) {
	buf := &bytes.Buffer{}
	err := EncodeFASTA(buf, []Record{{Name: "c1", Sequence: "ACGTACGTAC"}}, 4)
	if err != nil {
		t.Fatalf("EncodeFASTA: %v", err)
	}
	want := ">c1\nACGT\nACGT\nAC\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteThenReadFASTA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.fasta")
	in := []Record{
		{Name: "a", Sequence: strings.Repeat("A", 200)},
		{Name: "b", Sequence: "CGCG"},
	}
	if err := WriteFASTA(path, in, 0); err != nil {
		t.Fatalf("WriteFASTA: %v", err)
	}
	out, err := ReadFASTA(path)
	if err != nil {
		t.Fatalf("ReadFASTA: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
