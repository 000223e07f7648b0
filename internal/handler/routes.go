/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package handler

import "github.com/gin-gonic/gin"

func (h *HttpHandlers) RegisterRoutes(router *gin.Engine) {
	router.Use(h.LoggerMiddleware())
	router.Use(h.CORSMiddleware())

	router.GET("/", h.HandleRoot)

	auth := router.Group("/auth/polar")
	{
		auth.GET("/start", h.HandlePolarStart)
		auth.GET("/callback", h.HandlePolarCallback)
	}

	polar := router.Group("/polar")
	{
		polar.GET("/status", h.HandlePolarStatus)
		polar.GET("/workouts", h.HandleListWorkouts)
		polar.GET("/workouts/:id", h.HandleGetWorkout)
		polar.GET("/sleep", h.HandleGetSleep)
		polar.GET("/today", h.HandleGetToday)
		polar.POST("/sync", h.HandleTriggerSync)
	}
}
