package record

import "encoding/json"

// siteDTO is the persisted shape of a Site, keyed by field name.
type siteDTO struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Zipcode  string `json:"zipcode"`
	Phone    string `json:"phone"`
}

func (s Site) MarshalJSON() ([]byte, error) {
	return json.Marshal(siteDTO{
		Category: s.category,
		Name:     s.name,
		Address:  s.address,
		Zipcode:  s.zipcode,
		Phone:    s.phone,
	})
}

// UnmarshalJSON re-applies normalization so that a hand-edited cache file
// with blank values still yields a Site without empty fields.
func (s *Site) UnmarshalJSON(data []byte) error {
	var dto siteDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	*s = NewSite(SiteFields{
		Category: Found(dto.Category),
		Name:     Found(dto.Name),
		Address:  Found(dto.Address),
		Zipcode:  Found(dto.Zipcode),
		Phone:    Found(dto.Phone),
	})
	return nil
}
