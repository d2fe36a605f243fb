package avkorting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/replay"
)

// Machine folds offset events into an Avkorting. It takes no external context.
//
// Uhandtert opens the stream. A decision (Handtert) may be replaced until it is
// iverksatt, after which only notices it created may be marked as offset.
type Machine struct{}

func (Machine) Apply(state Avkorting, evt replay.Decoded, _ struct{}) (Avkorting, error) {
	switch s := state.(type) {
	case nil:
		if data, ok := evt.Data.(UhandtertHendelse); ok {
			return uhandtert(evt, data)
		}
	case Uhandtert:
		switch data := evt.Data.(type) {
		case HandtertHendelse:
			return handter(s, evt, data)
		case KanIkkeHandteresHendelse:
			if _, ok := s.(UhandtertKanIkke); ok {
				break
			}
			return UhandtertKanIkke{Uhandtert: s, Begrunnelse: data.Begrunnelse}, nil
		}
	case Handtert:
		switch data := evt.Data.(type) {
		case HandtertHendelse:
			return handter(s.Grunnlag(), evt, data)
		case KanIkkeHandteresHendelse:
			if _, ok := s.(HandtertKanIkke); ok {
				break
			}
			return HandtertKanIkke{Uhandtert: s.Grunnlag(), Begrunnelse: data.Begrunnelse}, nil
		case IverksattHendelse:
			return iverksett(s, evt, data)
		}
	case Iverksatt:
		if data, ok := evt.Data.(VarselAvkortetHendelse); ok {
			return avkort(s, evt, data)
		}
	}
	return nil, replay.Reject(state, evt)
}

func uhandtert(evt replay.Decoded, data UhandtertHendelse) (Avkorting, error) {
	if data.RevurderingID == uuid.Nil {
		return nil, replay.Invariant("revurdering id is required")
	}
	if data.Utestaende == nil {
		return UhandtertIngenUtestaende{RevurderingID: data.RevurderingID}, nil
	}
	varsel := *data.Utestaende
	if varsel.ID == uuid.Nil {
		return nil, replay.Invariant("outstanding avkortingsvarsel has no id")
	}
	if varsel.SakID != evt.OwnerID {
		return nil, replay.Invariant("avkortingsvarsel %s belongs to sak %s, not %s", varsel.ID, varsel.SakID, evt.OwnerID)
	}
	return UhandtertUtestaendeAvkorting{
		RevurderingID: data.RevurderingID,
		Varsel:        varsel.medStatus(varsel.Status),
	}, nil
}

func handter(grunnlag Uhandtert, evt replay.Decoded, data HandtertHendelse) (Avkorting, error) {
	if k, ok := grunnlag.(UhandtertKanIkke); ok {
		grunnlag = k.Uhandtert
	}
	utestaende := grunnlag.Utestaende()

	var nytt *Avkortingsvarsel
	if data.NyttVarsel != nil {
		v, err := nyttVarsel(*data.NyttVarsel, utestaende, evt)
		if err != nil {
			return nil, err
		}
		nytt = &v
	}

	if data.AnnullerUtestaende {
		if utestaende == nil {
			return nil, replay.Invariant("there is no outstanding avkortingsvarsel to annul")
		}
		if utestaende.Behandlet() {
			return HandtertKanIkke{
				Uhandtert:   grunnlag,
				Begrunnelse: fmt.Sprintf("avkortingsvarsel %s is already %s", utestaende.ID, utestaende.Status),
			}, nil
		}
		annullert := utestaende.medStatus(VarselAnnullert)
		if nytt != nil {
			return HandtertOpprettNyttOgAnnullerUtestaende{Uhandtert: grunnlag, NyttVarsel: *nytt, Annullert: annullert}, nil
		}
		return HandtertAnnullerUtestaende{Uhandtert: grunnlag, Annullert: annullert}, nil
	}

	if nytt != nil {
		return HandtertOpprettNyttAvkortingsvarsel{Uhandtert: grunnlag, NyttVarsel: *nytt}, nil
	}
	return HandtertIngenNyEllerUtestaende{Uhandtert: grunnlag}, nil
}

func nyttVarsel(v Avkortingsvarsel, utestaende *Avkortingsvarsel, evt replay.Decoded) (Avkortingsvarsel, error) {
	if v.ID == uuid.Nil {
		return v, replay.Invariant("new avkortingsvarsel has no id")
	}
	if utestaende != nil && utestaende.ID == v.ID {
		return v, replay.Invariant("new avkortingsvarsel %s reuses the outstanding notice id", v.ID)
	}
	if v.SakID != evt.OwnerID {
		return v, replay.Invariant("avkortingsvarsel %s belongs to sak %s, not %s", v.ID, v.SakID, evt.OwnerID)
	}
	if len(v.Maneder) == 0 {
		return v, replay.Invariant("avkortingsvarsel %s covers no months", v.ID)
	}
	for _, m := range v.Maneder {
		if _, err := time.Parse("2006-01", m); err != nil {
			return v, replay.Invariant("invalid month %q in avkortingsvarsel %s", m, v.ID)
		}
	}
	v = v.medStatus(VarselOpprettet)
	if v.Opprettet.IsZero() {
		v.Opprettet = evt.OccurredAt
	}
	return v, nil
}

func iverksett(h Handtert, evt replay.Decoded, data IverksattHendelse) (Avkorting, error) {
	if data.Attestant == "" {
		return nil, replay.Invariant("attestant is required")
	}
	var varsler []Avkortingsvarsel
	switch d := h.(type) {
	case HandtertOpprettNyttAvkortingsvarsel:
		varsler = append(varsler, d.NyttVarsel.medStatus(VarselSkalAvkortes))
	case HandtertAnnullerUtestaende:
		varsler = append(varsler, d.Annullert)
	case HandtertOpprettNyttOgAnnullerUtestaende:
		varsler = append(varsler, d.NyttVarsel.medStatus(VarselSkalAvkortes), d.Annullert)
	}
	return Iverksatt{
		Handtert:  h,
		Attestant: data.Attestant,
		Iverksatt: evt.OccurredAt,
		Varsler:   varsler,
	}, nil
}

func avkort(s Iverksatt, evt replay.Decoded, data VarselAvkortetHendelse) (Avkorting, error) {
	varsler := make([]Avkortingsvarsel, len(s.Varsler))
	copy(varsler, s.Varsler)

	for i, v := range varsler {
		if v.ID != data.VarselID {
			continue
		}
		if v.Status != VarselSkalAvkortes {
			return nil, fmt.Errorf("%w (avkortingsvarsel %s is %s)", replay.Reject(s, evt), v.ID, v.Status)
		}
		varsler[i] = v.medStatus(VarselAvkortet)
		s.Varsler = varsler
		return s, nil
	}
	return nil, fmt.Errorf("%w (unknown avkortingsvarsel %s)", replay.Reject(s, evt), data.VarselID)
}
