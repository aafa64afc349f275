// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"strconv"

	"github.com/getcarrier/s3gw/pkg/credential"
	"github.com/getcarrier/s3gw/pkg/logger"
	"github.com/getcarrier/s3gw/pkg/platform"
	"github.com/getcarrier/s3gw/pkg/s3api/s3err"
	"github.com/getcarrier/s3gw/pkg/s3api/signature"
)

// AuthenticationFilter dispatches a request to the right auth scheme
// and resolves it to an AuthContext. SigV4 requests carry their project
// in the access key; bearer and session requests name it with the
// project_id query parameter and must be members of that project.
type AuthenticationFilter struct {
	verifier *signature.V4Verifier
	creds    *credential.Service
	projects platform.Projects
	sessions platform.Sessions
}

func NewAuthenticationFilter(verifier *signature.V4Verifier, creds *credential.Service, projects platform.Projects, sessions platform.Sessions) *AuthenticationFilter {
	return &AuthenticationFilter{
		verifier: verifier,
		creds:    creds,
		projects: projects,
		sessions: sessions,
	}
}

func (f *AuthenticationFilter) Type() string {
	return "authentication"
}

func (f *AuthenticationFilter) Run(d *Data) (Response, error) {
	authType := signature.GetAuthType(d.Req)

	var (
		auth    *AuthContext
		errCode s3err.ErrorCode
	)
	switch authType {
	case signature.AuthTypeV4, signature.AuthTypePresignedV4:
		auth, errCode = f.sigV4Auth(d)
	case signature.AuthTypeBearer, signature.AuthTypeAnonymous:
		auth, errCode = f.sessionAuth(d)
	default:
		errCode = s3err.ErrAccessDenied
	}
	if errCode != s3err.ErrNone {
		logger.Ctx(d.Ctx).Debug().
			Str("auth_type", authType.String()).
			Str("reason", errCode.Code()).
			Msg("authentication failed")
		return End{}, errCode
	}

	auth.AuthType = authType
	d.Auth = auth
	return Next{}, nil
}

func (f *AuthenticationFilter) sigV4Auth(d *Data) (*AuthContext, s3err.ErrorCode) {
	cred, errCode := f.verifier.VerifyRequest(d.Req)
	if errCode != s3err.ErrNone {
		return nil, errCode
	}

	project, err := f.projects.GetProjectByID(d.Ctx, cred.ProjectID)
	if err != nil {
		return nil, s3err.ErrAccessDenied
	}

	return &AuthContext{
		ProjectID:  cred.ProjectID,
		Project:    project,
		Credential: cred,
	}, s3err.ErrNone
}

// sessionAuth resolves bearer tokens and ambient session cookies. The
// user must name a project and be a member of it; a credential is
// provisioned on first use.
func (f *AuthenticationFilter) sessionAuth(d *Data) (*AuthContext, s3err.ErrorCode) {
	projectID, err := strconv.ParseInt(d.Req.URL.Query().Get("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		return nil, s3err.ErrAccessDenied
	}

	user, err := f.sessions.CurrentUser(d.Req)
	if err != nil {
		return nil, s3err.ErrAccessDenied
	}

	member, err := f.projects.CheckUserInProject(d.Ctx, projectID, user.ID)
	if err != nil || !member {
		return nil, s3err.ErrAccessDenied
	}

	cred, err := f.creds.GetOrCreateBearer(d.Ctx, projectID, user.ID, user.Name)
	if err != nil {
		return nil, s3err.ErrAccessDenied
	}

	project, err := f.projects.GetProjectByID(d.Ctx, projectID)
	if err != nil {
		return nil, s3err.ErrAccessDenied
	}

	return &AuthContext{
		ProjectID:  projectID,
		Project:    project,
		Credential: cred,
		User:       user,
	}, s3err.ErrNone
}
