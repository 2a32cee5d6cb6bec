// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package procedures

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/vechain/cap9/api/utils"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/proctable"
)

type Procedures struct {
	table *proctable.Table
}

func New(table *proctable.Table) *Procedures {
	return &Procedures{table}
}

func (p *Procedures) handleList(w http.ResponseWriter, _ *http.Request) error {
	procs, err := p.table.Procedures()
	if err != nil {
		return err
	}
	res := make([]*Procedure, 0, len(procs))
	for _, proc := range procs {
		res = append(res, convertProcedure(proc))
	}
	return utils.WriteJSON(w, res)
}

func (p *Procedures) lookup(req *http.Request) (*proctable.Procedure, error) {
	key, err := cap9.ParseProcedureKey(mux.Vars(req)["key"])
	if err != nil {
		return nil, utils.BadRequest(errors.WithMessage(err, "key"))
	}
	proc, err := p.table.Procedure(key)
	if err != nil {
		return nil, err
	}
	if proc == nil {
		return nil, utils.NotFound(errors.Errorf("procedure %v not found", key))
	}
	return proc, nil
}

func (p *Procedures) handleGet(w http.ResponseWriter, req *http.Request) error {
	proc, err := p.lookup(req)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, convertProcedure(proc))
}

func (p *Procedures) handleGetCap(w http.ResponseWriter, req *http.Request) error {
	proc, err := p.lookup(req)
	if err != nil {
		return err
	}
	i, err := strconv.Atoi(mux.Vars(req)["index"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "index"))
	}
	c := proc.Caps.At(i)
	if c == nil {
		return utils.NotFound(errors.Errorf("capability %d not found", i))
	}
	return utils.WriteJSON(w, convertCapability(i, c))
}

func (p *Procedures) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /procedures").
		HandlerFunc(utils.WrapHandlerFunc(p.handleList))
	sub.Path("/{key}").
		Methods(http.MethodGet).
		Name("GET /procedures/{key}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGet))
	sub.Path("/{key}/caps/{index:[0-9]+}").
		Methods(http.MethodGet).
		Name("GET /procedures/{key}/caps/{index}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetCap))
}
