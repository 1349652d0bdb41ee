// Package jwt signs and verifies HS256 JSON Web Tokens for the operator API.
//
//	svc, err := jwt.NewFromString(os.Getenv("OPERATOR_JWT_SECRET"), jwt.WithIssuer("sessionguard"))
//	if err != nil {
//		return err
//	}
//
//	token, err := svc.Issue("oncall", time.Hour)
//
//	var claims jwt.StandardClaims
//	if err := svc.Parse(token, &claims); errors.Is(err, jwt.ErrExpiredToken) {
//		// ask for a fresh token
//	}
//
// Keys shorter than MinKeyLength are rejected. Parse requires an exp claim,
// accepts HS256 only and checks iss when the service has an issuer.
package jwt
