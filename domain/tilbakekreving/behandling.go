package tilbakekreving

import (
	"time"

	"github.com/google/uuid"
)

// Behandling is the reconstructed state of a repayment case. The implementations
// are Opprettet, Forhandsvarslet, Vurdert, TilAttestering, Iverksatt and Avbrutt.
type Behandling interface {
	StateName() string
	Fellesfelter() Felles
	behandling()
}

// Felles holds the fields shared by every state.
type Felles struct {
	ID              uuid.UUID
	SakID           uuid.UUID
	KravgrunnlagID  string
	OpprettetAv     string
	Opprettet       time.Time
	Versjon         int
	Forhandsvarsler []Forhandsvarsel
	Attesteringer   []Attestering
}

type Forhandsvarsel struct {
	DokumentID uuid.UUID
	Fritekst   string
	UtfortAv   string
	Tidspunkt  time.Time
}

// Attestering records one underkjent attestation. An iverksatt behandling keeps
// its approving attestant in Iverksatt.
type Attestering struct {
	Attestant string
	Grunn     string
	Kommentar string
	Tidspunkt time.Time
}

type Opprettet struct {
	Felles
}

type Forhandsvarslet struct {
	Felles
}

// Vurdert is also the state a behandling returns to when attestation is refused;
// Attesteringer is then non-empty.
type Vurdert struct {
	Felles
	Vurderinger []Vurdering
	VurdertAv   string
}

type TilAttestering struct {
	Felles
	Vurderinger   []Vurdering
	Saksbehandler string
	Sendt         time.Time
}

type Iverksatt struct {
	Felles
	Vurderinger   []Vurdering
	Saksbehandler string
	Attestant     string
	Iverksatt     time.Time
}

type Avbrutt struct {
	Felles
	Begrunnelse     string
	AvbruttAv       string
	Avbrutt         time.Time
	ForrigeTilstand string
}

func (s Opprettet) Fellesfelter() Felles       { return s.Felles }
func (s Forhandsvarslet) Fellesfelter() Felles { return s.Felles }
func (s Vurdert) Fellesfelter() Felles         { return s.Felles }
func (s TilAttestering) Fellesfelter() Felles  { return s.Felles }
func (s Iverksatt) Fellesfelter() Felles       { return s.Felles }
func (s Avbrutt) Fellesfelter() Felles         { return s.Felles }

func (Opprettet) StateName() string       { return "Opprettet" }
func (Forhandsvarslet) StateName() string { return "Forhandsvarslet" }
func (Vurdert) StateName() string         { return "Vurdert" }
func (TilAttestering) StateName() string  { return "TilAttestering" }
func (Iverksatt) StateName() string       { return "Iverksatt" }
func (Avbrutt) StateName() string         { return "Avbrutt" }

func (Opprettet) behandling()       {}
func (Forhandsvarslet) behandling() {}
func (Vurdert) behandling()         {}
func (TilAttestering) behandling()  {}
func (Iverksatt) behandling()       {}
func (Avbrutt) behandling()         {}

// Underkjent reports whether a Vurdert behandling came back from attestation.
func (s Vurdert) Underkjent() bool { return len(s.Attesteringer) > 0 }

// ErAvsluttet reports whether the behandling accepts no further events.
func ErAvsluttet(b Behandling) bool {
	switch b.(type) {
	case Iverksatt, Avbrutt:
		return true
	}
	return false
}
