package clinical

import "testing"

func TestDomainSequenceOrder(t *testing.T) {
	seq := DomainSequence()
	want := []Domain{
		DomainSubjective,
		DomainVitals,
		DomainExamination,
		DomainLaboratory,
		DomainImaging,
		DomainProcedures,
	}
	if len(seq) != len(want) {
		t.Fatalf("sequence length = %d", len(seq))
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("sequence[%d] = %s, want %s", i, seq[i], want[i])
		}
	}
}

func TestDomainIndex(t *testing.T) {
	if DomainSubjective.Index() != 0 || DomainProcedures.Index() != 5 {
		t.Fatal("canonical indices changed")
	}
	if Domain("genetics").Index() != -1 {
		t.Fatal("unknown domain must index to -1")
	}
}

func TestParseDomain(t *testing.T) {
	d, err := ParseDomain("vitals")
	if err != nil || d != DomainVitals {
		t.Fatalf("ParseDomain(vitals) = %v, %v", d, err)
	}

	// Legacy short alias.
	d, err = ParseDomain("procedures")
	if err != nil || d != DomainProcedures {
		t.Fatalf("ParseDomain(procedures) = %v, %v", d, err)
	}

	if _, err := ParseDomain("astrology"); err == nil {
		t.Fatal("expected error for unknown domain")
	}
}
