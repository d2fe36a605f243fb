package soknad

import (
	"time"

	"github.com/google/uuid"
)

// Soknad is the reconstructed lifecycle of one application. The open states are
// Ny, JournalfortUtenOppgave and MedOppgave. A Lukket application is Avvist,
// TrukketAvSoker or Bortfalt.
type Soknad interface {
	StateName() string
	Fellesfelter() Felles
	soknad()
}

// Lukket is a closed application. It accepts no further events.
type Lukket interface {
	Soknad
	Lukking() Lukkedetaljer
	lukket()
}

type Felles struct {
	ID          uuid.UUID
	SakID       uuid.UUID
	Innsendt    time.Time
	Mottaksdato string
	InnsendtAv  string
	Versjon     int
}

// Lukkedetaljer describes who closed the application and when.
type Lukkedetaljer struct {
	LukketAv      string
	Lukket        time.Time
	JournalpostID string
	OppgaveID     string
}

type Ny struct {
	Felles
}

type JournalfortUtenOppgave struct {
	Felles
	JournalpostID string
}

type MedOppgave struct {
	Felles
	JournalpostID string
	OppgaveID     string
}

type Avvist struct {
	Felles
	Lukkedetaljer
	Brevvalg Brevvalg
}

type TrukketAvSoker struct {
	Felles
	Lukkedetaljer
	TrukketDato string
}

type Bortfalt struct {
	Felles
	Lukkedetaljer
}

func (s Ny) Fellesfelter() Felles                     { return s.Felles }
func (s JournalfortUtenOppgave) Fellesfelter() Felles { return s.Felles }
func (s MedOppgave) Fellesfelter() Felles             { return s.Felles }
func (s Avvist) Fellesfelter() Felles                 { return s.Felles }
func (s TrukketAvSoker) Fellesfelter() Felles         { return s.Felles }
func (s Bortfalt) Fellesfelter() Felles               { return s.Felles }

func (s Avvist) Lukking() Lukkedetaljer         { return s.Lukkedetaljer }
func (s TrukketAvSoker) Lukking() Lukkedetaljer { return s.Lukkedetaljer }
func (s Bortfalt) Lukking() Lukkedetaljer       { return s.Lukkedetaljer }

func (Ny) StateName() string                     { return "Ny" }
func (JournalfortUtenOppgave) StateName() string { return "JournalfortUtenOppgave" }
func (MedOppgave) StateName() string             { return "MedOppgave" }
func (Avvist) StateName() string                 { return "Avvist" }
func (TrukketAvSoker) StateName() string         { return "TrukketAvSoker" }
func (Bortfalt) StateName() string               { return "Bortfalt" }

func (Ny) soknad()                     {}
func (JournalfortUtenOppgave) soknad() {}
func (MedOppgave) soknad()             {}
func (Avvist) soknad()                 {}
func (TrukketAvSoker) soknad()         {}
func (Bortfalt) soknad()               {}

func (Avvist) lukket()         {}
func (TrukketAvSoker) lukket() {}
func (Bortfalt) lukket()       {}
