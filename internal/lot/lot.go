// 包 lot：停车场记录与对外视图
package lot

import "parking-api/internal/geo"

// Record：单个停车场，加载时生成、此后只读
// 约束：查询返回值拷贝，不暴露索引内部引用
type Record struct {
	ID        string
	Name      string
	Type      string
	YearBuilt int
	Location  geo.Point
}

// View：对外序列化模型，字段稳定
type View struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	YearBuilt int     `json:"yearBuilt"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (r Record) View() View {
	return View{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		YearBuilt: r.YearBuilt,
		Latitude:  r.Location.Lat,
		Longitude: r.Location.Lon,
	}
}

// Less：按 ID 升序的确定性次序，用于等距时的并列裁决
func (r Record) Less(o Record) bool { return r.ID < o.ID }
