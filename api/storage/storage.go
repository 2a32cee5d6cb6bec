// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/vechain/cap9/api/utils"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/host"
	"github.com/vechain/cap9/layout"
)

type Word struct {
	Slot   *cap9.Bytes32 `json:"slot"`
	Value  *cap9.Bytes32 `json:"value"`
	Kernel bool          `json:"kernel"`
}

// Storage serves raw storage words. It never writes.
type Storage struct {
	storage host.Storage
}

func New(storage host.Storage) *Storage {
	return &Storage{storage}
}

func (s *Storage) handleGet(w http.ResponseWriter, req *http.Request) error {
	b, err := hexutil.Decode(mux.Vars(req)["slot"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "slot"))
	}
	if len(b) > 32 {
		return utils.BadRequest(errors.New("slot: longer than 32 bytes"))
	}
	slot := cap9.BytesToBytes32(b)
	value, err := s.storage.Read(slot)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Word{
		Slot:   &slot,
		Value:  &value,
		Kernel: layout.IsKernelSlot(slot),
	})
}

func (s *Storage) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{slot}").
		Methods(http.MethodGet).
		Name("GET /storage/{slot}").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGet))
}
