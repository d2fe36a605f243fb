package tilbakekreving

import (
	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/replay"
)

const (
	OpprettetType       hendelse.Type = "TILBAKEKREVINGSBEHANDLING_OPPRETTET"
	ForhandsvarsletType hendelse.Type = "TILBAKEKREVINGSBEHANDLING_FORHANDSVARSLET"
	VurdertType         hendelse.Type = "TILBAKEKREVINGSBEHANDLING_VURDERT"
	TilAttesteringType  hendelse.Type = "TILBAKEKREVINGSBEHANDLING_TIL_ATTESTERING"
	IverksattType       hendelse.Type = "TILBAKEKREVINGSBEHANDLING_IVERKSATT"
	UnderkjentType      hendelse.Type = "TILBAKEKREVINGSBEHANDLING_UNDERKJENT"
	AvbruttType         hendelse.Type = "TILBAKEKREVINGSBEHANDLING_AVBRUTT"
)

// Utfall is the outcome of assessing one month.
type Utfall string

const (
	SkalTilbakekreve     Utfall = "SKAL_TILBAKEKREVE"
	SkalIkkeTilbakekreve Utfall = "SKAL_IKKE_TILBAKEKREVE"
)

// Vurdering assesses one month (formatted YYYY-MM) of the kravgrunnlag.
type Vurdering struct {
	Maned  string `json:"maned"`
	Utfall Utfall `json:"utfall"`
}

type OpprettetHendelse struct {
	KravgrunnlagID string `json:"kravgrunnlag_id"`
	OpprettetAv    string `json:"opprettet_av"`
}

type ForhandsvarsletHendelse struct {
	DokumentID uuid.UUID `json:"dokument_id"`
	Fritekst   string    `json:"fritekst"`
	UtfortAv   string    `json:"utfort_av"`
}

type VurdertHendelse struct {
	Vurderinger []Vurdering `json:"vurderinger"`
	VurdertAv   string      `json:"vurdert_av"`
}

type TilAttesteringHendelse struct {
	Saksbehandler string `json:"saksbehandler"`
}

type IverksattHendelse struct {
	Attestant string `json:"attestant"`
}

type UnderkjentHendelse struct {
	Attestant string `json:"attestant"`
	Grunn     string `json:"grunn"`
	Kommentar string `json:"kommentar"`
}

type AvbruttHendelse struct {
	Begrunnelse string `json:"begrunnelse"`
	AvbruttAv   string `json:"avbrutt_av"`
}

// RegisterPayloads registers the codecs of every repayment event.
func RegisterPayloads(r *hendelse.Registry) {
	hendelse.RegisterJSON[OpprettetHendelse](r, OpprettetType)
	hendelse.RegisterJSON[ForhandsvarsletHendelse](r, ForhandsvarsletType)
	hendelse.RegisterJSON[VurdertHendelse](r, VurdertType)
	hendelse.RegisterJSON[TilAttesteringHendelse](r, TilAttesteringType)
	hendelse.RegisterJSON[IverksattHendelse](r, IverksattType)
	hendelse.RegisterJSON[UnderkjentHendelse](r, UnderkjentType)
	hendelse.RegisterJSON[AvbruttHendelse](r, AvbruttType)
}

// RegisterMachine binds repayment streams to Machine.
func RegisterMachine(r *replay.Registry) {
	r.Register(OpprettetType, replay.Bind[Behandling, Kontekst](Machine{}))
}
