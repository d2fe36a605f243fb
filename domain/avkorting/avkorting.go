package avkorting

import (
	"time"

	"github.com/google/uuid"
)

type VarselStatus string

const (
	VarselOpprettet    VarselStatus = "OPPRETTET"
	VarselSkalAvkortes VarselStatus = "SKAL_AVKORTES"
	VarselAvkortet     VarselStatus = "AVKORTET"
	VarselAnnullert    VarselStatus = "ANNULLERT"
)

// Avkortingsvarsel is a notice that paid-out benefit for the listed months must be
// offset against a future payment.
type Avkortingsvarsel struct {
	ID        uuid.UUID    `json:"id"`
	SakID     uuid.UUID    `json:"sak_id"`
	Maneder   []string     `json:"maneder"`
	Opprettet time.Time    `json:"opprettet"`
	Status    VarselStatus `json:"status"`
}

// Behandlet reports whether the notice can no longer change.
func (v Avkortingsvarsel) Behandlet() bool {
	return v.Status == VarselAvkortet || v.Status == VarselAnnullert
}

func (v Avkortingsvarsel) medStatus(status VarselStatus) Avkortingsvarsel {
	v.Status = status
	v.Maneder = append([]string(nil), v.Maneder...)
	return v
}

// Avkorting is the reconstructed offset handling of one revurdering.
type Avkorting interface {
	StateName() string
	avkorting()
}

// Uhandtert is an Avkorting awaiting a decision.
type Uhandtert interface {
	Avkorting
	// Utestaende is the sak's outstanding notice, nil when there is none.
	Utestaende() *Avkortingsvarsel
	uhandtert()
}

// Handtert is an Avkorting with a decision that is not yet iverksatt.
type Handtert interface {
	Avkorting
	// Grunnlag is the undecided state the decision was made on.
	Grunnlag() Uhandtert
	handtert()
}

type UhandtertIngenUtestaende struct {
	RevurderingID uuid.UUID
}

type UhandtertUtestaendeAvkorting struct {
	RevurderingID uuid.UUID
	Varsel        Avkortingsvarsel
}

// UhandtertKanIkke marks an undecided handling the saksbehandler cannot resolve.
type UhandtertKanIkke struct {
	Uhandtert   Uhandtert
	Begrunnelse string
}

type HandtertOpprettNyttAvkortingsvarsel struct {
	Uhandtert  Uhandtert
	NyttVarsel Avkortingsvarsel
}

type HandtertAnnullerUtestaende struct {
	Uhandtert Uhandtert
	Annullert Avkortingsvarsel
}

type HandtertOpprettNyttOgAnnullerUtestaende struct {
	Uhandtert  Uhandtert
	NyttVarsel Avkortingsvarsel
	Annullert  Avkortingsvarsel
}

type HandtertIngenNyEllerUtestaende struct {
	Uhandtert Uhandtert
}

// HandtertKanIkke is a decision that could not be carried out, either because
// the saksbehandler said so or because the outstanding notice was already
// annulled or offset.
type HandtertKanIkke struct {
	Uhandtert   Uhandtert
	Begrunnelse string
}

// Iverksatt is the committed decision. Varsler holds the notices it created or
// annulled with their current status.
type Iverksatt struct {
	Handtert  Handtert
	Attestant string
	Iverksatt time.Time
	Varsler   []Avkortingsvarsel
}

func (s UhandtertIngenUtestaende) Utestaende() *Avkortingsvarsel { return nil }
func (s UhandtertUtestaendeAvkorting) Utestaende() *Avkortingsvarsel {
	v := s.Varsel
	return &v
}
func (s UhandtertKanIkke) Utestaende() *Avkortingsvarsel { return s.Uhandtert.Utestaende() }

func (s HandtertOpprettNyttAvkortingsvarsel) Grunnlag() Uhandtert     { return s.Uhandtert }
func (s HandtertAnnullerUtestaende) Grunnlag() Uhandtert              { return s.Uhandtert }
func (s HandtertOpprettNyttOgAnnullerUtestaende) Grunnlag() Uhandtert { return s.Uhandtert }
func (s HandtertIngenNyEllerUtestaende) Grunnlag() Uhandtert          { return s.Uhandtert }
func (s HandtertKanIkke) Grunnlag() Uhandtert                         { return s.Uhandtert }

func (UhandtertIngenUtestaende) StateName() string                { return "UhandtertIngenUtestaende" }
func (UhandtertUtestaendeAvkorting) StateName() string            { return "UhandtertUtestaendeAvkorting" }
func (UhandtertKanIkke) StateName() string                        { return "UhandtertKanIkke" }
func (HandtertOpprettNyttAvkortingsvarsel) StateName() string     { return "HandtertOpprettNyttAvkortingsvarsel" }
func (HandtertAnnullerUtestaende) StateName() string              { return "HandtertAnnullerUtestaende" }
func (HandtertOpprettNyttOgAnnullerUtestaende) StateName() string { return "HandtertOpprettNyttOgAnnullerUtestaende" }
func (HandtertIngenNyEllerUtestaende) StateName() string          { return "HandtertIngenNyEllerUtestaende" }
func (HandtertKanIkke) StateName() string                         { return "HandtertKanIkke" }
func (Iverksatt) StateName() string                               { return "Iverksatt" }

func (UhandtertIngenUtestaende) avkorting()                {}
func (UhandtertUtestaendeAvkorting) avkorting()            {}
func (UhandtertKanIkke) avkorting()                        {}
func (HandtertOpprettNyttAvkortingsvarsel) avkorting()     {}
func (HandtertAnnullerUtestaende) avkorting()              {}
func (HandtertOpprettNyttOgAnnullerUtestaende) avkorting() {}
func (HandtertIngenNyEllerUtestaende) avkorting()          {}
func (HandtertKanIkke) avkorting()                         {}
func (Iverksatt) avkorting()                               {}

func (UhandtertIngenUtestaende) uhandtert()     {}
func (UhandtertUtestaendeAvkorting) uhandtert() {}
func (UhandtertKanIkke) uhandtert()             {}

func (HandtertOpprettNyttAvkortingsvarsel) handtert()     {}
func (HandtertAnnullerUtestaende) handtert()              {}
func (HandtertOpprettNyttOgAnnullerUtestaende) handtert() {}
func (HandtertIngenNyEllerUtestaende) handtert()          {}
func (HandtertKanIkke) handtert()                         {}

// Varsel returns the committed notice with the given id.
func (s Iverksatt) Varsel(id uuid.UUID) (Avkortingsvarsel, bool) {
	for _, v := range s.Varsler {
		if v.ID == id {
			return v, true
		}
	}
	return Avkortingsvarsel{}, false
}
