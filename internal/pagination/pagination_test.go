package pagination

import "testing"

func TestPageRequest_Defaults(t *testing.T) {
	p := PageRequest{}
	p.Defaults()
	if p.Page != 1 || p.PageSize != 20 {
		t.Errorf("expected page 1 size 20, got page %d size %d", p.Page, p.PageSize)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}

	p = PageRequest{Page: 3, PageSize: 10}
	p.Defaults()
	if p.Offset() != 20 {
		t.Errorf("expected offset 20, got %d", p.Offset())
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[string](nil, 2, 10, 25)
	if resp.Data == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if resp.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", resp.TotalPages)
	}

	resp = NewPageResponse([]string{"a"}, 1, 10, 0)
	if resp.TotalPages != 0 {
		t.Errorf("expected 0 pages, got %d", resp.TotalPages)
	}
}

func TestPageRequest_DefaultsClamp(t *testing.T) {
	p := PageRequest{Page: -2, PageSize: 500, Sort: "sideways"}
	p.Defaults()
	if p.Page != 1 || p.PageSize != MaxPageSize {
		t.Errorf("expected page 1 size %d, got page %d size %d", MaxPageSize, p.Page, p.PageSize)
	}
	if p.Sort != SortNewest {
		t.Errorf("expected %s, got %s", SortNewest, p.Sort)
	}

	p = PageRequest{Sort: SortOldest}
	p.Defaults()
	if p.Sort != SortOldest {
		t.Errorf("expected %s to be kept, got %s", SortOldest, p.Sort)
	}
}
