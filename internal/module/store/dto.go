package store

import "github.com/simp-lee/layover/internal/domain"

// StoreRequest is the body of a create or store request. The store type
// comes from the path; a type in the body must agree with it.
type StoreRequest struct {
	Type        string `json:"type" binding:"omitempty,oneof=remote hosted group"`
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"omitempty,max=255"`

	URL            string `json:"url" binding:"omitempty,url,max=1024"`
	TimeoutSeconds int    `json:"timeout_seconds" binding:"omitempty,min=0"`
	Passthrough    bool   `json:"passthrough"`

	AllowReleases  bool `json:"allow_releases"`
	AllowSnapshots bool `json:"allow_snapshots"`

	Constituents []string `json:"constituents" binding:"omitempty,dive,required"`
}

func (r *StoreRequest) toStore(typ domain.StoreType) *domain.Store {
	return &domain.Store{
		Type:           typ,
		Name:           r.Name,
		Description:    r.Description,
		URL:            r.URL,
		TimeoutSeconds: r.TimeoutSeconds,
		Passthrough:    r.Passthrough,
		AllowReleases:  r.AllowReleases,
		AllowSnapshots: r.AllowSnapshots,
		Constituents:   r.Constituents,
	}
}
