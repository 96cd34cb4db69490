package entity

// Re-export common types so most packages only need to import entity.

import (
	"genstudio/internal/entity/common"
)

type StringArray = common.StringArray
type JSONMap = common.JSONMap
type Response = common.Response
type ResponseItems = common.ResponseItems
type Meta = common.Meta
type BaseParams = common.BaseParams
