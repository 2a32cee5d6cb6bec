// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package status

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vechain/cap9/api/utils"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/kernel"
)

type Status struct {
	Deployed   bool               `json:"deployed"`
	Address    *cap9.Address      `json:"address"`
	Entry      *cap9.ProcedureKey `json:"entry"`
	Current    *cap9.ProcedureKey `json:"current"`
	Length     uint64             `json:"length"`
	MaxIndex   uint64             `json:"maxIndex"`
	Procedures int                `json:"procedures"`
}

type Kernel struct {
	kernel *kernel.Kernel
}

func New(k *kernel.Kernel) *Kernel {
	return &Kernel{k}
}

func (k *Kernel) status() (*Status, error) {
	table := k.kernel.Table()

	deployed, err := k.kernel.Deployed()
	if err != nil {
		return nil, err
	}
	addr, err := table.KernelAddress()
	if err != nil {
		return nil, err
	}
	entry, err := table.Entry()
	if err != nil {
		return nil, err
	}
	current, err := table.Current()
	if err != nil {
		return nil, err
	}
	n, err := table.Len()
	if err != nil {
		return nil, err
	}
	procs, err := table.Procedures()
	if err != nil {
		return nil, err
	}
	return &Status{
		Deployed:   deployed,
		Address:    &addr,
		Entry:      &entry,
		Current:    &current,
		Length:     n,
		MaxIndex:   table.MaxIndex(),
		Procedures: len(procs),
	}, nil
}

func (k *Kernel) handleGet(w http.ResponseWriter, _ *http.Request) error {
	s, err := k.status()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, s)
}

func (k *Kernel) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /kernel").
		HandlerFunc(utils.WrapHandlerFunc(k.handleGet))
}
