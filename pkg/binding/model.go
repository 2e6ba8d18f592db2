package binding

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Edge is one entry in a node's stored edge list: the peer id plus this
// side's forwarding flag. A freshly created edge forwards by default, and a
// record missing the flag reads as forwarding.
type Edge struct {
	ID   string `json:"id"`
	Sync bool   `json:"sync"`
}

func (e *Edge) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   string `json:"id"`
		Sync *bool  `json:"sync"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.ID = raw.ID
	e.Sync = raw.Sync == nil || *raw.Sync
	return nil
}

// EdgeList is a JSON-array column of edges. An empty list serializes as
// "[]", never null; readers of the raw rows depend on that.
type EdgeList []Edge

func (l EdgeList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *EdgeList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = EdgeList{}
		return nil
	case []byte:
		return l.scanBytes(v)
	case string:
		return l.scanBytes([]byte(v))
	default:
		return fmt.Errorf("unsupported edge list column type %T", src)
	}
}

func (l *EdgeList) scanBytes(data []byte) error {
	if len(data) == 0 {
		*l = EdgeList{}
		return nil
	}
	var out EdgeList
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if out == nil {
		out = EdgeList{}
	}
	*l = out
	return nil
}

// Find returns the edge with the given peer id, if present.
func (l EdgeList) Find(id string) (Edge, bool) {
	for _, e := range l {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// Without returns the list with the given peer id removed.
func (l EdgeList) Without(id string) EdgeList {
	out := make(EdgeList, 0, len(l))
	for _, e := range l {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// QQRecord is one row of the QQ binding table: a QQ group and its edges to
// the other two surfaces.
type QQRecord struct {
	GroupID   string   `gorm:"primaryKey;column:qq_group_id"`
	YHGroups  EdgeList `gorm:"column:yh_group_ids;type:text"`
	MCServers EdgeList `gorm:"column:mc_server_ids;type:text"`
}

func (QQRecord) TableName() string { return "qq_bindings" }

// YHRecord is one row of the Yunhu binding table.
type YHRecord struct {
	GroupID   string   `gorm:"primaryKey;column:yh_group_id"`
	QQGroups  EdgeList `gorm:"column:qq_group_ids;type:text"`
	MCServers EdgeList `gorm:"column:mc_server_ids;type:text"`
}

func (YHRecord) TableName() string { return "yh_bindings" }

// MCRecord is one row of the Minecraft binding table.
type MCRecord struct {
	ServerID string   `gorm:"primaryKey;column:mc_server_id"`
	QQGroups EdgeList `gorm:"column:qq_group_ids;type:text"`
	YHGroups EdgeList `gorm:"column:yh_group_ids;type:text"`
}

func (MCRecord) TableName() string { return "mc_bindings" }
