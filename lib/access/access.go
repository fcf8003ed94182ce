// Package access holds the role registry and pause switch a vault composes.
package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnauthorized = errors.New("access: caller lacks role")
	ErrPaused       = errors.New("access: paused")
	ErrNotPaused    = errors.New("access: not paused")
)

type Role string

const (
	RoleGovernance Role = "governance"
	RoleStrategist Role = "strategist"
	RoleKeeper     Role = "keeper"
	RoleGuardian   Role = "guardian"
)

// Roles maps roles to members. Governance administers every role.
type Roles struct {
	mu      sync.RWMutex
	members map[Role]map[common.Address]struct{}
}

func NewRoles(governance common.Address) *Roles {
	r := &Roles{members: make(map[Role]map[common.Address]struct{})}
	r.add(RoleGovernance, governance)
	return r
}

func (r *Roles) add(role Role, account common.Address) {
	if r.members[role] == nil {
		r.members[role] = make(map[common.Address]struct{})
	}
	r.members[role][account] = struct{}{}
}

func (r *Roles) Has(role Role, account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[role][account]
	return ok
}

// Require succeeds when account holds any of roles.
func (r *Roles) Require(account common.Address, roles ...Role) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range roles {
		if _, ok := r.members[role][account]; ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s needs one of %v", ErrUnauthorized, account.Hex(), roles)
}

func (r *Roles) Grant(caller common.Address, role Role, account common.Address) error {
	if err := r.Require(caller, RoleGovernance); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(role, account)
	return nil
}

func (r *Roles) Revoke(caller common.Address, role Role, account common.Address) error {
	if err := r.Require(caller, RoleGovernance); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[role], account)
	return nil
}

// Pause is a two state switch. Guardians and governance pause, only governance unpauses.
type Pause struct {
	mu     sync.RWMutex
	roles  *Roles
	paused bool
}

// NewPause returns a switch that starts paused.
func NewPause(roles *Roles) *Pause {
	return &Pause{roles: roles, paused: true}
}

func (p *Pause) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

func (p *Pause) RequireNotPaused() error {
	if p.Paused() {
		return ErrPaused
	}
	return nil
}

func (p *Pause) Pause(caller common.Address) error {
	if err := p.roles.Require(caller, RoleGuardian, RoleGovernance); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return ErrPaused
	}
	p.paused = true
	return nil
}

func (p *Pause) Unpause(caller common.Address) error {
	if err := p.roles.Require(caller, RoleGovernance); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return ErrNotPaused
	}
	p.paused = false
	return nil
}
