package common

import "gorm.io/gorm"

// ActiveOnly 仅查询生效状态的记录
// 使用方法：db.Scopes(common.ActiveOnly()).Find(&contracts)
func ActiveOnly() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", "active")
	}
}

// StatusNotIn 排除指定状态
// 使用方法：db.Scopes(common.StatusNotIn("paid", "cancelled")).Find(&invoices)
func StatusNotIn(statuses ...string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 0 {
			return db
		}
		return db.Where("status NOT IN ?", statuses)
	}
}

// Unresolved 仅查询未解决的记录
func Unresolved() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("resolved = ?", false)
	}
}

// Paginate 按分页参数截取
// 使用方法：db.Scopes(common.Paginate(req)).Find(&alerts)
func Paginate(req PaginationRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.GetOffset()).Limit(req.GetPageSize())
	}
}
