// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package procedures

import (
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/proctable"
)

type Capability struct {
	Index       int             `json:"index"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Words       []*cap9.Bytes32 `json:"words"`
}

type Procedure struct {
	Key     *cap9.ProcedureKey `json:"key"`
	Address *cap9.Address      `json:"address"`
	Index   uint64             `json:"index"`
	Caps    []*Capability      `json:"caps"`
}

func convertCapability(i int, c caps.Capability) *Capability {
	encoded := caps.Encode(c)
	words := make([]*cap9.Bytes32, len(encoded))
	for j := range encoded {
		words[j] = &encoded[j]
	}
	return &Capability{
		Index:       i,
		Type:        c.Type().String(),
		Description: c.String(),
		Words:       words,
	}
}

func convertProcedure(p *proctable.Procedure) *Procedure {
	list := make([]*Capability, len(p.Caps))
	for i, c := range p.Caps {
		list[i] = convertCapability(i, c)
	}
	return &Procedure{
		Key:     &p.Key,
		Address: &p.Address,
		Index:   p.Index,
		Caps:    list,
	}
}
