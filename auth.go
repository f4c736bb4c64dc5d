package main

import (
	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"github.com/gin-gonic/gin"
)

type signUpRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

func signUpHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signUpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		user, err := models.Register(c.Request.Context(), req.Email, req.Password, req.ConfirmPassword)
		if err != nil {
			respondError(c, "signUpHandler", err)
			return
		}

		respondOK(c, gin.H{
			"username": user.Username,
			"msg":      "registration received; an administrator must approve it before sign-in",
		})
	}
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func signInHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		info, err := models.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, "signInHandler", err)
			return
		}

		respondOK(c, gin.H{"login": info})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := models.Logout(c.Request.Context()); err != nil {
			respondError(c, "logoutHandler", err)
			return
		}
		respondOK(c, gin.H{"msg": "signed out"})
	}
}

func updateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.AccountUpdate
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		user, err := models.UpdateAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "updateAccountHandler", err)
			return
		}
		respondOK(c, gin.H{"user": user})
	}
}
