package avkorting

import (
	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/replay"
)

const (
	UhandtertType        hendelse.Type = "AVKORTING_UHANDTERT"
	HandtertType         hendelse.Type = "AVKORTING_HANDTERT"
	KanIkkeHandteresType hendelse.Type = "AVKORTING_KAN_IKKE_HANDTERES"
	IverksattType        hendelse.Type = "AVKORTING_IVERKSATT"
	VarselAvkortetType   hendelse.Type = "AVKORTINGSVARSEL_AVKORTET"
)

// UhandtertHendelse opens the offset handling of a revurdering. Utestaende is the
// sak's outstanding notice at the time, if any.
type UhandtertHendelse struct {
	RevurderingID uuid.UUID         `json:"revurdering_id"`
	Utestaende    *Avkortingsvarsel `json:"utestaende,omitempty"`
}

// HandtertHendelse records the saksbehandler's decision. It may be recorded
// again to replace an earlier decision.
type HandtertHendelse struct {
	NyttVarsel         *Avkortingsvarsel `json:"nytt_varsel,omitempty"`
	AnnullerUtestaende bool              `json:"annuller_utestaende"`
}

type KanIkkeHandteresHendelse struct {
	Begrunnelse string `json:"begrunnelse"`
}

type IverksattHendelse struct {
	Attestant string `json:"attestant"`
}

// VarselAvkortetHendelse records that a later behandling offset a notice.
type VarselAvkortetHendelse struct {
	VarselID     uuid.UUID `json:"varsel_id"`
	BehandlingID uuid.UUID `json:"behandling_id"`
}

// RegisterPayloads registers the codecs of every offset event.
func RegisterPayloads(r *hendelse.Registry) {
	hendelse.RegisterJSON[UhandtertHendelse](r, UhandtertType)
	hendelse.RegisterJSON[HandtertHendelse](r, HandtertType)
	hendelse.RegisterJSON[KanIkkeHandteresHendelse](r, KanIkkeHandteresType)
	hendelse.RegisterJSON[IverksattHendelse](r, IverksattType)
	hendelse.RegisterJSON[VarselAvkortetHendelse](r, VarselAvkortetType)
}

// RegisterMachine binds offset streams to Machine.
func RegisterMachine(r *replay.Registry) {
	r.Register(UhandtertType, replay.Bind[Avkorting, struct{}](Machine{}))
}
